package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/domain/repository"
)

type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *entity.RefreshToken) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, is_revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.IsRevoked, t.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, hash string) (*entity.RefreshToken, error) {
	return r.get(ctx, hash, "")
}

func (r *RefreshTokenRepository) GetByTokenHashForUpdate(ctx context.Context, hash string) (*entity.RefreshToken, error) {
	return r.get(ctx, hash, " FOR UPDATE")
}

func (r *RefreshTokenRepository) get(ctx context.Context, hash, lock string) (*entity.RefreshToken, error) {
	var t entity.RefreshToken
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, is_revoked, created_at
		FROM refresh_tokens
		WHERE token_hash = $1`+lock, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.IsRevoked, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, id string) error {
	q := conn(ctx, r.pool)
	res, err := q.Exec(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE WHERE id = $1 AND NOT is_revoked`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return repository.ErrAlreadyRevoked
	}
	return repository.ErrNotFound
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE
		WHERE user_id = $1 AND NOT is_revoked AND expires_at > $2
	`, userID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1 OR is_revoked`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

var _ repository.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

type PasswordResetTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPasswordResetTokenRepository(pool *pgxpool.Pool) *PasswordResetTokenRepository {
	return &PasswordResetTokenRepository{pool: pool}
}

func (r *PasswordResetTokenRepository) Create(ctx context.Context, t *entity.PasswordResetToken) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, is_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.IsUsed, t.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (r *PasswordResetTokenRepository) GetByTokenHashForUpdate(ctx context.Context, hash string) (*entity.PasswordResetToken, error) {
	var t entity.PasswordResetToken
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, is_used, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`, hash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.IsUsed, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PasswordResetTokenRepository) InvalidateActiveForUser(ctx context.Context, userID string) (int64, error) {
	res, err := conn(ctx, r.pool).Exec(ctx, `UPDATE password_reset_tokens SET is_used = TRUE WHERE user_id = $1 AND NOT is_used`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (r *PasswordResetTokenRepository) MarkUsed(ctx context.Context, id string) error {
	res, err := conn(ctx, r.pool).Exec(ctx, `UPDATE password_reset_tokens SET is_used = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PasswordResetTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < $1 OR is_used`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

var _ repository.PasswordResetTokenRepository = (*PasswordResetTokenRepository)(nil)
