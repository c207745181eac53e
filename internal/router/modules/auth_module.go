package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/notism-go/internal/interface/http"
	"github.com/oksasatya/notism-go/internal/interface/middleware"
	"github.com/oksasatya/notism-go/pkg/helpers"
)

// AuthModule serves /auth: sessions, password reset and Google login.
type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     middleware.TokenParser
	Cookies *helpers.CookieManager
	RDB     *redis.Client
}

func NewAuthModule(h *handlers.AuthHandler, jwt middleware.TokenParser, cookies *helpers.CookieManager, rdb *redis.Client) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt, Cookies: cookies, RDB: rdb}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Public endpoints with IP-based rate limits
	credLimiter := middleware.RateLimit(m.RDB, 10, time.Minute, middleware.KeyByIPAndPath(), nil)
	refreshLimiter := middleware.RateLimit(m.RDB, 60, time.Minute, middleware.KeyByIP(), nil)
	forgotLimiter := middleware.RateLimit(m.RDB, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetLimiter := middleware.RateLimit(m.RDB, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	oauthLimiter := middleware.RateLimit(m.RDB, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	antiForgery := middleware.AntiForgery(m.Cookies)

	auth := rg.Group("/auth")
	auth.POST("/register", credLimiter, m.Handler.Register)
	auth.POST("/login", credLimiter, m.Handler.Login)
	auth.POST("/refresh", refreshLimiter, antiForgery, m.Handler.Refresh)
	auth.GET("/antiforgery", refreshLimiter, m.Handler.AntiForgery)
	auth.POST("/password/forgot", forgotLimiter, m.Handler.ForgotPassword)
	auth.POST("/password/reset", resetLimiter, m.Handler.ResetPassword)
	auth.GET("/google", oauthLimiter, m.Handler.GoogleRedirect)
	auth.GET("/google/callback", oauthLimiter, m.Handler.GoogleCallback)

	auth.POST("/logout", middleware.Auth(m.JWT), antiForgery, m.Handler.Logout)
}
