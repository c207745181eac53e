// Package container builds the application services from configuration and
// the infrastructure clients opened by cmd/.
package container

import (
	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/config"
	"github.com/oksasatya/notism-go/internal/application"
	"github.com/oksasatya/notism-go/internal/domain/repository"
	"github.com/oksasatya/notism-go/internal/infrastructure/mail"
	"github.com/oksasatya/notism-go/internal/infrastructure/memory"
	"github.com/oksasatya/notism-go/internal/infrastructure/oauth/google"
	pginfra "github.com/oksasatya/notism-go/internal/infrastructure/postgres"
	"github.com/oksasatya/notism-go/internal/infrastructure/redisstore"
	"github.com/oksasatya/notism-go/internal/infrastructure/search"
	gcsinfra "github.com/oksasatya/notism-go/internal/infrastructure/storage"
	"github.com/oksasatya/notism-go/pkg/helpers"
)

// Infra holds the clients opened by the binary. Any of them may be nil;
// the feature that needs it is then disabled or backed by memory.
type Infra struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	GCS       *storage.Client
	ES        *elasticsearch.Client
	RabbitPub *helpers.RabbitPublisher
}

type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	Infra

	JWT     *helpers.JWTManager
	Cookies *helpers.CookieManager

	Auth    *application.AuthService
	Users   *application.UserService
	Cleanup *application.TokenCleanupService
}

type repos struct {
	users   repository.UserRepository
	refresh repository.RefreshTokenRepository
	resets  repository.PasswordResetTokenRepository
	tx      repository.Transactor
}

func newRepos(pool *pgxpool.Pool, logger *logrus.Logger) repos {
	if pool == nil {
		logger.Warn("no database pool, using in-memory store")
		s := memory.NewStore()
		return repos{users: s.Users(), refresh: s.RefreshTokens(), resets: s.ResetTokens(), tx: s}
	}
	return repos{
		users:   pginfra.NewUserRepository(pool),
		refresh: pginfra.NewRefreshTokenRepository(pool),
		resets:  pginfra.NewPasswordResetTokenRepository(pool),
		tx:      pginfra.NewTransactor(pool),
	}
}

// New wires the services. cfg must already be validated.
func New(cfg *config.Config, logger *logrus.Logger, infra Infra) (*Container, error) {
	jwtm, err := helpers.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenTTL())
	if err != nil {
		return nil, err
	}
	hasher, err := helpers.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		return nil, err
	}
	r := newRepos(infra.Pool, logger)

	var sender application.EmailSender = mail.NewLogNotifier(logger)
	if cfg.MailSendEnabled && infra.RabbitPub != nil {
		sender = mail.NewQueueNotifier(infra.RabbitPub, cfg)
	}
	events := application.NewEventDispatcher(sender, logger)

	refresh := application.NewRefreshTokenStore(r.refresh, cfg.RefreshTokenTTL())
	resets := application.NewPasswordResetService(r.users, r.resets, refresh, r.tx, hasher, sender, events, logger, cfg.PasswordResetTTL())

	deps := application.AuthDeps{
		Users:   r.users,
		Tx:      r.tx,
		Refresh: refresh,
		Resets:  resets,
		Hasher:  hasher,
		Tokens:  jwtm,
		Events:  events,
		Logger:  logger,
	}
	if p := google.NewProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL); p.Enabled() && infra.Redis != nil {
		deps.OAuth = p
		deps.States = redisstore.NewOAuthStateStore(infra.Redis)
	}

	var objects application.ObjectStorage
	if infra.GCS != nil && cfg.GCSBucket != "" {
		objects = gcsinfra.NewGCSStorage(infra.GCS, cfg.GCSBucket)
	}
	var index application.UserIndex
	if infra.ES != nil {
		index = search.NewUserIndex(infra.ES, cfg.ESUsersIndex)
	}

	return &Container{
		Config:  cfg,
		Logger:  logger,
		Infra:   infra,
		JWT:     jwtm,
		Cookies: helpers.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure),
		Auth:    application.NewAuthService(deps),
		Users:   application.NewUserService(r.users, objects, index, events, logger),
		Cleanup: application.NewTokenCleanupService(refresh, resets, cfg.TokenRetention(), logger),
	}, nil
}
