package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/domain/repository"
)

const userColumns = `id, email, password_hash, role, first_name, last_name, avatar_url, is_deleted, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, first_name, last_name, avatar_url, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, string(u.Email), u.PasswordHash, string(u.Role), u.FirstName, u.LastName, u.AvatarURL, u.IsDeleted, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email entity.Email) (*entity.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, string(email))
	return scanUser(row)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, u *entity.User) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		u.ID, u.PasswordHash, u.UpdatedAt)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *entity.User) error {
	return r.exec(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, avatar_url = $4, updated_at = $5
		WHERE id = $1
	`, u.ID, u.FirstName, u.LastName, u.AvatarURL, u.UpdatedAt)
}

func (r *UserRepository) UpdateRole(ctx context.Context, u *entity.User) error {
	return r.exec(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`,
		u.ID, string(u.Role), u.UpdatedAt)
}

func (r *UserRepository) exec(ctx context.Context, sql string, args ...any) error {
	res, err := conn(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		u           entity.User
		email, role string
	)
	err := row.Scan(&u.ID, &email, &u.PasswordHash, &role, &u.FirstName, &u.LastName,
		&u.AvatarURL, &u.IsDeleted, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Email = entity.Email(email)
	u.Role = entity.Role(role)
	return &u, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
