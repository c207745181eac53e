package repository

import (
	"context"
	"time"

	"github.com/oksasatya/notism-go/internal/domain/entity"
)

// RefreshTokenRepository persists refresh tokens keyed by their hash.
type RefreshTokenRepository interface {
	Create(ctx context.Context, t *entity.RefreshToken) error
	GetByTokenHash(ctx context.Context, hash string) (*entity.RefreshToken, error)
	// GetByTokenHashForUpdate locks the row until the surrounding transaction ends.
	GetByTokenHashForUpdate(ctx context.Context, hash string) (*entity.RefreshToken, error)
	// Revoke returns ErrAlreadyRevoked when the row was revoked before the call.
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// PasswordResetTokenRepository persists reset tokens keyed by their hash.
type PasswordResetTokenRepository interface {
	Create(ctx context.Context, t *entity.PasswordResetToken) error
	GetByTokenHashForUpdate(ctx context.Context, hash string) (*entity.PasswordResetToken, error)
	// InvalidateActiveForUser marks every unused token of the user as used.
	InvalidateActiveForUser(ctx context.Context, userID string) (int64, error)
	MarkUsed(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
