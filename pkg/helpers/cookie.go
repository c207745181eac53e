package helpers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	RefreshTokenCookie = "X-Refresh-Token"
	AntiForgeryCookie  = "X-CSRF-TOKEN"
	AntiForgeryHeader  = "X-XSRF-TOKEN"
)

var ErrAntiForgeryValidationFailed = errors.New("anti-forgery token validation failed")

// CookieManager writes the refresh cookie and the double-submit
// anti-forgery pair. Every cookie is HttpOnly, SameSite=Strict, Path=/.
type CookieManager struct {
	Domain string
	Secure bool
}

func NewCookieManager(domain string, secure bool) *CookieManager {
	return &CookieManager{Domain: domain, Secure: secure}
}

func (m *CookieManager) set(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", m.Domain, m.Secure, true)
}

// SetRefreshToken stores token in the refresh cookie until exp.
func (m *CookieManager) SetRefreshToken(c *gin.Context, token string, exp time.Time) {
	m.set(c, RefreshTokenCookie, token, maxAgeFrom(exp))
}

// RefreshToken reads the refresh cookie.
func (m *CookieManager) RefreshToken(c *gin.Context) (string, bool) {
	v, err := c.Cookie(RefreshTokenCookie)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// IssueAntiForgery generates a token, stores it in the anti-forgery cookie
// and exposes it in the response header for the client to echo back.
func (m *CookieManager) IssueAntiForgery(c *gin.Context) (string, error) {
	tok, err := NewURLSafeToken()
	if err != nil {
		return "", err
	}
	m.set(c, AntiForgeryCookie, tok, 0)
	c.Header(AntiForgeryHeader, tok)
	return tok, nil
}

// ValidateAntiForgery compares the request header against the cookie in
// constant time.
func (m *CookieManager) ValidateAntiForgery(c *gin.Context) error {
	header := c.GetHeader(AntiForgeryHeader)
	cookie, err := c.Cookie(AntiForgeryCookie)
	if err != nil || header == "" || cookie == "" {
		return ErrAntiForgeryValidationFailed
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 {
		return ErrAntiForgeryValidationFailed
	}
	return nil
}

// ClearSession expires the refresh and anti-forgery cookies.
func (m *CookieManager) ClearSession(c *gin.Context) {
	m.set(c, RefreshTokenCookie, "", -1)
	m.set(c, AntiForgeryCookie, "", -1)
}

func maxAgeFrom(exp time.Time) int {
	sec := int(time.Until(exp).Seconds())
	if sec <= 0 {
		return -1
	}
	return sec
}
