package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/domain/repository"
	"github.com/oksasatya/notism-go/pkg/helpers"
)

// RefreshTokenStore issues and revokes opaque refresh tokens. Callers only
// ever see the raw token; the repository only ever sees its hash.
type RefreshTokenStore struct {
	repo repository.RefreshTokenRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewRefreshTokenStore(repo repository.RefreshTokenRepository, ttl time.Duration) *RefreshTokenStore {
	return &RefreshTokenStore{repo: repo, ttl: ttl, now: time.Now}
}

func (s *RefreshTokenStore) Issue(ctx context.Context, userID string) (string, time.Time, error) {
	raw, err := helpers.NewRefreshToken()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now().UTC()
	t := &entity.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: helpers.HashTokenHex(raw),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: store refresh token: %w", ErrPersistence, err)
	}
	return raw, t.ExpiresAt, nil
}

// FindValid returns nil when raw is unknown, expired or revoked.
func (s *RefreshTokenStore) FindValid(ctx context.Context, raw string) (*entity.RefreshToken, error) {
	t, err := s.repo.GetByTokenHash(ctx, helpers.HashTokenHex(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load refresh token: %w", ErrPersistence, err)
	}
	if !t.IsValid(s.now()) {
		return nil, nil
	}
	return t, nil
}

func (s *RefreshTokenStore) Revoke(ctx context.Context, raw string) error {
	t, err := s.repo.GetByTokenHash(ctx, helpers.HashTokenHex(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidRefreshToken
	}
	if err != nil {
		return fmt.Errorf("%w: load refresh token: %w", ErrPersistence, err)
	}
	return s.revokeByID(ctx, t.ID)
}

func (s *RefreshTokenStore) revokeByID(ctx context.Context, id string) error {
	err := s.repo.Revoke(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrAlreadyRevoked):
		return ErrTokenAlreadyRevoked
	case errors.Is(err, repository.ErrNotFound):
		return ErrInvalidRefreshToken
	default:
		return fmt.Errorf("%w: revoke refresh token: %w", ErrPersistence, err)
	}
}

// RevokeAll revokes every live token of the user in one statement.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: revoke refresh tokens: %w", ErrPersistence, err)
	}
	return n, nil
}

// DeleteExpired removes tokens that expired before cutoff and all revoked ones.
func (s *RefreshTokenStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: delete refresh tokens: %w", ErrPersistence, err)
	}
	return n, nil
}

// lockValid loads and row-locks raw for rotation. Must run inside a transaction.
func (s *RefreshTokenStore) lockValid(ctx context.Context, raw string) (*entity.RefreshToken, error) {
	t, err := s.repo.GetByTokenHashForUpdate(ctx, helpers.HashTokenHex(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock refresh token: %w", ErrPersistence, err)
	}
	if !t.IsValid(s.now()) {
		return nil, ErrInvalidRefreshToken
	}
	return t, nil
}
