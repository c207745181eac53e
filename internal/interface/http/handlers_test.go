package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/notism-go/internal/application"
	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/infrastructure/memory"
	"github.com/oksasatya/notism-go/internal/interface/middleware"
	"github.com/oksasatya/notism-go/pkg/helpers"
	"github.com/oksasatya/notism-go/pkg/mailer"
	"github.com/oksasatya/notism-go/pkg/validation"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "correct-horse-1"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendPasswordResetEmail(_ context.Context, to entity.Email, _, token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[to.String()] = token
	return nil
}

func (m *captureMailer) SendWelcomeEmail(context.Context, entity.Email, string) error { return nil }

func (m *captureMailer) token(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}

type memStorage struct{ objects map[string][]byte }

func (s *memStorage) Upload(_ context.Context, objectPath, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.objects[objectPath] = b
	return "https://storage.example.test/" + objectPath, nil
}

type recordingPublisher struct {
	jobs []mailer.EmailJob
	err  error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, body any) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, body.(mailer.EmailJob))
	return nil
}

type server struct {
	engine  *gin.Engine
	jwt     *helpers.JWTManager
	mail    *captureMailer
	storage *memStorage
	pub     *recordingPublisher
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hasher, err := helpers.NewPasswordHasher(bcrypt.MinCost, 4)
	require.NoError(t, err)
	jwtm, err := helpers.NewJWTManager(testSecret, "notism", "notism-clients", time.Hour)
	require.NoError(t, err)

	store := memory.NewStore()
	s := &server{
		jwt:     jwtm,
		mail:    &captureMailer{},
		storage: &memStorage{objects: map[string][]byte{}},
		pub:     &recordingPublisher{},
	}
	events := application.NewEventDispatcher(s.mail, logger)
	refresh := application.NewRefreshTokenStore(store.RefreshTokens(), 7*24*time.Hour)
	resets := application.NewPasswordResetService(store.Users(), store.ResetTokens(), refresh, store, hasher, s.mail, events, logger, time.Hour)
	auth := application.NewAuthService(application.AuthDeps{
		Users:   store.Users(),
		Tx:      store,
		Refresh: refresh,
		Resets:  resets,
		Hasher:  hasher,
		Tokens:  jwtm,
		Events:  events,
		Logger:  logger,
	})
	users := application.NewUserService(store.Users(), s.storage, nil, events, logger)
	cookies := helpers.NewCookieManager("", false)

	ah := NewAuthHandler(auth, cookies, logger)
	uh := NewUserHandler(users, auth, cookies, logger)
	adm := NewAdminHandler(users, logger)
	eh := NewEmailHandler(s.pub, logger, true)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/register", ah.Register)
	api.POST("/auth/login", ah.Login)
	api.POST("/auth/refresh", middleware.AntiForgery(cookies), ah.Refresh)
	api.POST("/auth/logout", middleware.Auth(jwtm), middleware.AntiForgery(cookies), ah.Logout)
	api.GET("/auth/antiforgery", ah.AntiForgery)
	api.POST("/auth/password/forgot", ah.ForgotPassword)
	api.POST("/auth/password/reset", ah.ResetPassword)
	api.GET("/auth/google", ah.GoogleRedirect)
	api.GET("/auth/google/callback", ah.GoogleCallback)

	me := api.Group("/users/me", middleware.Auth(jwtm))
	me.GET("", uh.GetProfile)
	me.PUT("", uh.UpdateProfile)
	me.PUT("/password", uh.ChangePassword)
	me.POST("/avatar", uh.UploadAvatar)

	admin := api.Group("/admin", middleware.Auth(jwtm), middleware.RequireRole(entity.RoleAdmin))
	admin.GET("/users/search", adm.SearchUsers)
	admin.PUT("/users/:id/role", adm.UpdateRole)
	admin.POST("/email/send", eh.Send)

	s.engine = r
	return s
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Error   json.RawMessage `json:"error"`
}

type session struct {
	AccessToken string               `json:"access_token"`
	User        application.UserInfo `json:"user"`
	refresh     *http.Cookie
	csrf        *http.Cookie
	xsrf        string
}

func (s *server) do(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func readSession(t *testing.T, w *httptest.ResponseRecorder, env envelope) session {
	t.Helper()
	var sess session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	sess.refresh = cookie(w, helpers.RefreshTokenCookie)
	sess.csrf = cookie(w, helpers.AntiForgeryCookie)
	sess.xsrf = w.Header().Get(helpers.AntiForgeryHeader)
	require.NotNil(t, sess.refresh)
	require.NotNil(t, sess.csrf)
	return sess
}

// withSession attaches the bearer token, cookies and anti-forgery header.
func withSession(req *http.Request, sess session) *http.Request {
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	req.AddCookie(sess.refresh)
	req.AddCookie(sess.csrf)
	req.Header.Set(helpers.AntiForgeryHeader, sess.xsrf)
	return req
}

func (s *server) register(t *testing.T, email string) session {
	t.Helper()
	w, env := s.do(jsonRequest(http.MethodPost, "/api/auth/register", gin.H{
		"email": email, "password": testPassword, "first_name": "Ada", "last_name": "Lovelace",
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return readSession(t, w, env)
}

func TestRegisterSetsSessionCookies(t *testing.T) {
	s := newServer(t)
	sess := s.register(t, "ada@example.com")

	assert.NotEmpty(t, sess.AccessToken)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.Equal(t, "user", sess.User.Role)
	assert.True(t, sess.refresh.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, sess.refresh.SameSite)
	assert.Equal(t, "/", sess.refresh.Path)
	assert.Equal(t, sess.csrf.Value, sess.xsrf)

	w, env := s.do(jsonRequest(http.MethodPost, "/api/auth/register", gin.H{
		"email": "ada@example.com", "password": testPassword,
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
}

func TestRegisterRejectsBadPayload(t *testing.T) {
	s := newServer(t)
	w, env := s.do(jsonRequest(http.MethodPost, "/api/auth/register", gin.H{"email": "nope", "password": "short"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(env.Error), "email")
	assert.Contains(t, string(env.Error), "password")
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	s := newServer(t)
	s.register(t, "ada@example.com")

	cases := []gin.H{
		{"email": "ada@example.com", "password": "wrong-password"},
		{"email": "nobody@example.com", "password": testPassword},
		{"email": "not-an-email", "password": testPassword},
	}
	for _, body := range cases {
		w, env := s.do(jsonRequest(http.MethodPost, "/api/auth/login", body))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid email or password", env.Message)
		assert.Nil(t, cookie(w, helpers.RefreshTokenCookie))
	}

	w, env := s.do(jsonRequest(http.MethodPost, "/api/auth/login", gin.H{"email": "ada@example.com", "password": testPassword}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, readSession(t, w, env).AccessToken)
}

func TestRefreshRequiresAntiForgeryAndRotates(t *testing.T) {
	s := newServer(t)
	sess := s.register(t, "ada@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(sess.refresh)
	req.AddCookie(sess.csrf)
	w, env := s.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Anti-forgery token validation failed", env.Message)

	w, env = s.do(withSession(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), sess))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	next := readSession(t, w, env)
	assert.NotEqual(t, sess.refresh.Value, next.refresh.Value)

	// the rotated-out token is dead
	w, _ = s.do(withSession(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), sess))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(withSession(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), next))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	s := newServer(t)
	sess := s.register(t, "ada@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(sess.csrf)
	req.Header.Set(helpers.AntiForgeryHeader, sess.xsrf)
	w, _ := s.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesAndClearsCookies(t *testing.T) {
	s := newServer(t)
	sess := s.register(t, "ada@example.com")

	w, env := s.do(withSession(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), sess))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"revoked_sessions":1}`, string(env.Data))
	cleared := cookie(w, helpers.RefreshTokenCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	w, _ = s.do(withSession(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), sess))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAntiForgeryEndpoint(t *testing.T) {
	s := newServer(t)
	w, env := s.do(httptest.NewRequest(http.MethodGet, "/api/auth/antiforgery", nil))
	require.Equal(t, http.StatusOK, w.Code)
	c := cookie(w, helpers.AntiForgeryCookie)
	require.NotNil(t, c)
	assert.Equal(t, c.Value, w.Header().Get(helpers.AntiForgeryHeader))
	assert.Contains(t, string(env.Data), c.Value)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newServer(t)
	s.register(t, "ada@example.com")

	_, known := s.do(jsonRequest(http.MethodPost, "/api/auth/password/forgot", gin.H{"email": "ada@example.com"}))
	_, unknown := s.do(jsonRequest(http.MethodPost, "/api/auth/password/forgot", gin.H{"email": "ghost@example.com"}))
	assert.Equal(t, known.Message, unknown.Message)
	assert.Equal(t, known.Status, unknown.Status)

	token := s.mail.token("ada@example.com")
	require.NotEmpty(t, token)

	w, _ := s.do(jsonRequest(http.MethodPost, "/api/auth/password/reset", gin.H{"token": token, "new_password": "brand-new-pass-2"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := s.do(jsonRequest(http.MethodPost, "/api/auth/password/reset", gin.H{"token": token, "new_password": "another-pass-3"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired password reset token", env.Message)

	w, _ = s.do(jsonRequest(http.MethodPost, "/api/auth/login", gin.H{"email": "ada@example.com", "password": "brand-new-pass-2"}))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGoogleDisabledAndBadState(t *testing.T) {
	s := newServer(t)
	w, _ := s.do(httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w, env := s.do(httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=forged&code=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid oauth state", env.Message)
}

func TestProfileEndpoints(t *testing.T) {
	s := newServer(t)
	sess := s.register(t, "ada@example.com")

	w, _ := s.do(httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := s.do(withSession(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), sess))
	require.Equal(t, http.StatusOK, w.Code)
	var info application.UserInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, sess.User.ID, info.ID)

	w, env = s.do(withSession(jsonRequest(http.MethodPut, "/api/users/me", gin.H{"first_name": "Augusta"}), sess))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "Augusta", info.FirstName)
	assert.Equal(t, "Lovelace", info.LastName)
}

func TestChangePasswordEndsSessions(t *testing.T) {
	s := newServer(t)
	sess := s.register(t, "ada@example.com")

	w, _ := s.do(withSession(jsonRequest(http.MethodPut, "/api/users/me/password", gin.H{
		"current_password": "wrong-password", "new_password": "brand-new-pass-2",
	}), sess))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(withSession(jsonRequest(http.MethodPut, "/api/users/me/password", gin.H{
		"current_password": testPassword, "new_password": "brand-new-pass-2",
	}), sess))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(withSession(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), sess))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func multipartAvatar(t *testing.T, contentType string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="me.PNG"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/users/me/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAvatar(t *testing.T) {
	s := newServer(t)
	sess := s.register(t, "ada@example.com")

	w, env := s.do(withSession(multipartAvatar(t, "image/png", []byte("\x89PNG fake")), sess))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), "https://storage.example.test/avatars/"+sess.User.ID+"/")
	require.Len(t, s.storage.objects, 1)
	for name := range s.storage.objects {
		assert.True(t, strings.HasSuffix(name, ".png"), name)
	}

	w, _ = s.do(withSession(multipartAvatar(t, "application/pdf", []byte("%PDF")), sess))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w, _ = s.do(withSession(jsonRequest(http.MethodPost, "/api/users/me/avatar", nil), sess))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func adminSession(t *testing.T, s *server) session {
	t.Helper()
	tok, _, err := s.jwt.Issue("admin-1", "root@example.com", entity.RoleAdmin.String())
	require.NoError(t, err)
	return session{AccessToken: tok, refresh: &http.Cookie{Name: "x"}, csrf: &http.Cookie{Name: "y"}}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newServer(t)
	sess := s.register(t, "ada@example.com")

	w, env := s.do(withSession(jsonRequest(http.MethodPut, "/api/admin/users/"+sess.User.ID+"/role", gin.H{"role": "admin"}), sess))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, `"insufficient role"`, string(env.Error))

	admin := adminSession(t, s)
	w, env = s.do(withSession(jsonRequest(http.MethodPut, "/api/admin/users/"+sess.User.ID+"/role", gin.H{"role": "admin"}), admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var info application.UserInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "admin", info.Role)

	w, _ = s.do(withSession(jsonRequest(http.MethodPut, "/api/admin/users/"+sess.User.ID+"/role", gin.H{"role": "root"}), admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(withSession(jsonRequest(http.MethodPut, "/api/admin/users/00000000-0000-0000-0000-000000000000/role", gin.H{"role": "user"}), admin))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminSearchWithoutIndex(t *testing.T) {
	s := newServer(t)
	admin := adminSession(t, s)

	w, env := s.do(withSession(httptest.NewRequest(http.MethodGet, "/api/admin/users/search?q=ada", nil), admin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0}`, string(env.Meta))

	w, _ = s.do(withSession(httptest.NewRequest(http.MethodGet, "/api/admin/users/search", nil), admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminSendEmail(t *testing.T) {
	s := newServer(t)
	admin := adminSession(t, s)

	w, _ := s.do(withSession(jsonRequest(http.MethodPost, "/api/admin/email/send", gin.H{"to": "ada@example.com", "template": "nope"}), admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := s.do(withSession(jsonRequest(http.MethodPost, "/api/admin/email/send", gin.H{
		"to": "ada@example.com", "subject": "hi", "text": "hello",
	}), admin))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.JSONEq(t, `{"enqueued":true}`, string(env.Data))
	require.Len(t, s.pub.jobs, 1)
	assert.Equal(t, "hi", s.pub.jobs[0].Subject)

	s.pub.err = errors.New("broker down")
	w, _ = s.do(withSession(jsonRequest(http.MethodPost, "/api/admin/email/send", gin.H{
		"to": "ada@example.com", "template": "welcome",
	}), admin))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestEmailSendDisabled(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewEmailHandler(pub, logrus.New(), false)
	r := gin.New()
	r.POST("/send", h.Send)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/send", gin.H{"to": "ada@example.com", "template": "welcome"}))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"disabled":true`)
	assert.Empty(t, pub.jobs)
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) { writeError(c, logger, errors.New("pq: connection reset")) })
	r.GET("/dup", func(c *gin.Context) {
		writeError(c, logger, errors.Join(application.ErrUserAlreadyExists, errors.New("detail")))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	assert.NotContains(t, w.Body.String(), "connection reset")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dup", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
