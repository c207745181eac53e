package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/oksasatya/notism-go/config"
	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/domain/repository"
	pginfra "github.com/oksasatya/notism-go/internal/infrastructure/postgres"
	"github.com/oksasatya/notism-go/pkg/helpers"
)

// seed upserts an admin account from SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	email, err := entity.NewEmail(os.Getenv("SEED_ADMIN_EMAIL"))
	if err != nil {
		log.Fatalf("SEED_ADMIN_EMAIL: %v", err)
	}
	pwd, err := entity.NewPassword(os.Getenv("SEED_ADMIN_PASSWORD"))
	if err != nil {
		log.Fatalf("SEED_ADMIN_PASSWORD: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptionsFrom(cfg, "seed"))
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.Fatalf("migration failed: %v", err)
	}

	hasher, err := helpers.NewPasswordHasher(cfg.BcryptCost, 1)
	if err != nil {
		logger.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash(ctx, pwd.Plain())
	if err != nil {
		logger.Fatalf("failed to hash password: %v", err)
	}

	users := pginfra.NewUserRepository(pool)
	tx := pginfra.NewTransactor(pool)
	now := time.Now()

	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		u, err := users.GetByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			u, err = entity.NewUser(email, hash, entity.RoleAdmin, "Admin", "", now)
			if err != nil {
				return err
			}
			logger.WithField("user_id", u.ID).Info("creating admin user")
			return users.Create(ctx, u)
		}
		if err != nil {
			return err
		}
		promoted, err := u.WithRole(entity.RoleAdmin, now)
		if err != nil {
			return err
		}
		if err := users.UpdateRole(ctx, promoted); err != nil {
			return err
		}
		logger.WithField("user_id", u.ID).Info("updating existing user to admin")
		return users.UpdatePassword(ctx, promoted.WithPassword(hash, now))
	})
	if err != nil {
		logger.Fatalf("failed to seed admin: %v", err)
	}
	logger.WithField("email", email.String()).Info("admin user seeded")
}
