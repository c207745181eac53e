package repository

import (
	"context"

	"github.com/oksasatya/notism-go/internal/domain/entity"
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email entity.Email) (*entity.User, error)
	UpdatePassword(ctx context.Context, u *entity.User) error
	UpdateProfile(ctx context.Context, u *entity.User) error
	UpdateRole(ctx context.Context, u *entity.User) error
}
