package postgres

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/domain/repository"
)

const migrationsDir = "../../../db/migrations"

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("notism"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, RunMigrations(dsn, migrationsDir, logger))

	pool, err := NewPool(ctx, dsn, PoolOptions{MaxConns: 4, MinConns: 1, ApplicationName: "notism-test"})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedUser(ctx context.Context, t *testing.T, repo *UserRepository, email string) *entity.User {
	t.Helper()
	u, err := entity.NewUser(entity.Email(email), "hash", entity.RoleUser, "Test", "User", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, u))
	return u
}

func TestPostgresRepositories(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	refresh := NewRefreshTokenRepository(pool)
	resets := NewPasswordResetTokenRepository(pool)
	tx := NewTransactor(pool)

	t.Run("user lookup is case insensitive and unique", func(t *testing.T) {
		u := seedUser(ctx, t, users, "case@example.com")

		got, err := users.GetByEmail(ctx, "CASE@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, entity.RoleUser, got.Role)

		dup, err := entity.NewUser("Case@Example.com", "hash", entity.RoleUser, "", "", time.Now())
		require.NoError(t, err)
		assert.ErrorIs(t, users.Create(ctx, dup), repository.ErrDuplicate)

		_, err = users.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("refresh token revoke semantics", func(t *testing.T) {
		u := seedUser(ctx, t, users, "refresh@example.com")
		now := time.Now().UTC()
		live := &entity.RefreshToken{ID: uuid.NewString(), UserID: u.ID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(time.Hour), CreatedAt: now}
		live2 := &entity.RefreshToken{ID: uuid.NewString(), UserID: u.ID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(time.Hour), CreatedAt: now}
		expired := &entity.RefreshToken{ID: uuid.NewString(), UserID: u.ID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(-time.Hour), CreatedAt: now}
		for _, tok := range []*entity.RefreshToken{live, live2, expired} {
			require.NoError(t, refresh.Create(ctx, tok))
		}

		require.NoError(t, refresh.Revoke(ctx, live.ID))
		assert.ErrorIs(t, refresh.Revoke(ctx, live.ID), repository.ErrAlreadyRevoked)
		assert.ErrorIs(t, refresh.Revoke(ctx, uuid.NewString()), repository.ErrNotFound)

		n, err := refresh.RevokeAllForUser(ctx, u.ID, now)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, "only the live, unrevoked token is touched")

		got, err := refresh.GetByTokenHash(ctx, live2.TokenHash)
		require.NoError(t, err)
		assert.True(t, got.IsRevoked)
	})

	t.Run("delete expired removes expired or revoked rows", func(t *testing.T) {
		u := seedUser(ctx, t, users, "sweep@example.com")
		now := time.Now().UTC()
		keep := &entity.RefreshToken{ID: uuid.NewString(), UserID: u.ID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(time.Hour), CreatedAt: now}
		old := &entity.RefreshToken{ID: uuid.NewString(), UserID: u.ID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(-10 * 24 * time.Hour), CreatedAt: now}
		require.NoError(t, refresh.Create(ctx, keep))
		require.NoError(t, refresh.Create(ctx, old))

		_, err := refresh.DeleteExpired(ctx, now.Add(-7*24*time.Hour))
		require.NoError(t, err)

		_, err = refresh.GetByTokenHash(ctx, old.TokenHash)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = refresh.GetByTokenHash(ctx, keep.TokenHash)
		assert.NoError(t, err)
	})

	t.Run("single unused reset token per user", func(t *testing.T) {
		u := seedUser(ctx, t, users, "reset@example.com")
		now := time.Now().UTC()
		first := &entity.PasswordResetToken{ID: uuid.NewString(), UserID: u.ID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(time.Hour), CreatedAt: now}
		second := &entity.PasswordResetToken{ID: uuid.NewString(), UserID: u.ID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(time.Hour), CreatedAt: now}
		require.NoError(t, resets.Create(ctx, first))
		assert.ErrorIs(t, resets.Create(ctx, second), repository.ErrDuplicate)

		n, err := resets.InvalidateActiveForUser(ctx, u.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		require.NoError(t, resets.Create(ctx, second))
	})

	t.Run("transaction rollback discards writes", func(t *testing.T) {
		boom := errors.New("boom")
		var id string
		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			u := seedUser(ctx, t, users, "rollback@example.com")
			id = u.ID
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = users.GetByID(ctx, id)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
