package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	handlers "github.com/oksasatya/notism-go/internal/interface/http"
	"github.com/oksasatya/notism-go/internal/interface/middleware"
)

// AdminModule serves /admin; every route requires the admin role.
type AdminModule struct {
	Users *handlers.AdminHandler
	Email *handlers.EmailHandler
	JWT   middleware.TokenParser
	RDB   *redis.Client
}

func NewAdminModule(users *handlers.AdminHandler, email *handlers.EmailHandler, jwt middleware.TokenParser, rdb *redis.Client) *AdminModule {
	return &AdminModule{Users: users, Email: email, JWT: jwt, RDB: rdb}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(
		middleware.Auth(m.JWT),
		middleware.RequireRole(entity.RoleAdmin),
		middleware.RateLimit(m.RDB, 60, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		admin.GET("/users/search", m.Users.SearchUsers)
		admin.PUT("/users/:id/role", m.Users.UpdateRole)
		admin.POST("/email/send", m.Email.Send)
	}
}
