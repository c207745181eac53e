package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/internal/application"
	"github.com/oksasatya/notism-go/internal/interface/middleware"
	"github.com/oksasatya/notism-go/pkg/helpers"
	"github.com/oksasatya/notism-go/pkg/response"
	"github.com/oksasatya/notism-go/pkg/validation"
)

type AuthHandler struct {
	Svc     *application.AuthService
	Cookies *helpers.CookieManager
	Logger  *logrus.Logger
}

func NewAuthHandler(svc *application.AuthService, cookies *helpers.CookieManager, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Cookies: cookies, Logger: logger}
}

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,pwd"`
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,pwd"`
}

// sessionResponse is the body of every call that opens or rotates a session.
// The refresh token itself only travels in the cookie.
type sessionResponse struct {
	AccessToken string               `json:"access_token"`
	ExpiresAt   time.Time            `json:"expires_at"`
	User        application.UserInfo `json:"user"`
}

// writeSession sets the refresh cookie and a fresh anti-forgery token, then
// writes the access token and profile.
func (h *AuthHandler) writeSession(c *gin.Context, status int, res *application.AuthResult, message string) {
	h.Cookies.SetRefreshToken(c, res.RefreshToken, res.RefreshExpiresAt)
	if _, err := h.Cookies.IssueAntiForgery(c); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, status, sessionResponse{
		AccessToken: res.AccessToken,
		ExpiresAt:   res.AccessExpiresAt,
		User:        res.User,
	}, message, map[string]any{"refresh_expires_at": res.RefreshExpiresAt})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.writeSession(c, http.StatusCreated, res, "registered")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.writeSession(c, http.StatusOK, res, "login successful")
}

// Refresh rotates the refresh cookie. The anti-forgery pair is checked by
// middleware before this runs.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := h.Cookies.RefreshToken(c)
	if !ok {
		writeError(c, h.Logger, application.ErrInvalidRefreshToken)
		return
	}
	res, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.writeSession(c, http.StatusOK, res, "token refreshed")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	n, err := h.Svc.Logout(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Cookies.ClearSession(c)
	response.Success(c, http.StatusOK, gin.H{"revoked_sessions": n}, "logged out", nil)
}

// AntiForgery issues a fresh double-submit token for clients that lost theirs.
func (h *AuthHandler) AntiForgery(c *gin.Context) {
	tok, err := h.Cookies.IssueAntiForgery(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"token": tok}, "anti-forgery token issued", nil)
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	msg, err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, msg, nil)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.CompletePasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "password has been reset", nil)
}

// GoogleRedirect returns the provider authorization URL; the client navigates there.
func (h *AuthHandler) GoogleRedirect(c *gin.Context) {
	url, err := h.Svc.BeginOAuth(c.Request.Context())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"redirect_url": url}, "redirect", nil)
}

func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		h.Logger.WithField("provider_error", e).Warn("oauth callback rejected by provider")
		writeError(c, h.Logger, application.ErrOAuthFailed)
		return
	}
	if err := h.Svc.VerifyOAuthState(c.Request.Context(), c.Query("state")); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	code := c.Query("code")
	if code == "" {
		response.Error(c, http.StatusBadRequest, "invalid payload", map[string]string{"code": "is required"})
		return
	}
	res, err := h.Svc.OAuthLogin(c.Request.Context(), code)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.writeSession(c, http.StatusOK, res, "login successful")
}
