package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/notism-go/internal/interface/http"
	"github.com/oksasatya/notism-go/internal/interface/middleware"
)

// UserModule serves the signed-in user's own account under /users/me.
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     middleware.TokenParser
	RDB     *redis.Client
}

func NewUserModule(h *handlers.UserHandler, jwt middleware.TokenParser, rdb *redis.Client) *UserModule {
	return &UserModule{Handler: h, JWT: jwt, RDB: rdb}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	me := rg.Group("/users/me")
	me.Use(middleware.Auth(m.JWT))
	me.Use(
		middleware.RateLimit(m.RDB, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(m.RDB, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		me.GET("", m.Handler.GetProfile)
		me.PUT("", m.Handler.UpdateProfile)
		me.PUT("/password", m.Handler.ChangePassword)
		me.POST("/avatar", middleware.RateLimit(m.RDB, 10, time.Minute, middleware.KeyByUserID(), nil), m.Handler.UploadAvatar)
	}
}
