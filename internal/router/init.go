package router

import (
	"github.com/oksasatya/notism-go/internal/container"
	handlers "github.com/oksasatya/notism-go/internal/interface/http"
	"github.com/oksasatya/notism-go/internal/router/modules"
)

// InitModules builds the handlers from c and registers their modules.
// Call once during startup, before RegisterAll.
func InitModules(r *Registry, c *container.Container) {
	cfg := c.Config

	authHandler := handlers.NewAuthHandler(c.Auth, c.Cookies, c.Logger)
	userHandler := handlers.NewUserHandler(c.Users, c.Auth, c.Cookies, c.Logger)
	adminHandler := handlers.NewAdminHandler(c.Users, c.Logger)

	var pub handlers.JobPublisher
	if c.RabbitPub != nil {
		pub = c.RabbitPub
	}
	emailHandler := handlers.NewEmailHandler(pub, c.Logger, cfg.MailSendEnabled)

	r.Add(modules.NewAuthModule(authHandler, c.JWT, c.Cookies, c.Redis))
	r.Add(modules.NewUserModule(userHandler, c.JWT, c.Redis))
	r.Add(modules.NewAdminModule(adminHandler, emailHandler, c.JWT, c.Redis))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(c.Redis))
	}
}
