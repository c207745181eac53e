package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/domain/repository"
)

// UserService manages profiles of existing users. Storage and Index may be
// nil; uploads then fail and indexing is skipped.
type UserService struct {
	users   repository.UserRepository
	storage ObjectStorage
	index   UserIndex
	events  *EventDispatcher
	logger  *logrus.Logger
	now     func() time.Time
}

func NewUserService(users repository.UserRepository, storage ObjectStorage, index UserIndex, events *EventDispatcher, logger *logrus.Logger) *UserService {
	return &UserService{users: users, storage: storage, index: index, events: events, logger: logger, now: time.Now}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load user: %w", ErrPersistence, err)
	}
	if u.IsDeleted {
		return nil, ErrUserNotFound
	}
	return u, nil
}

type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.User, error) {
	return s.applyProfile(ctx, userID, entity.ProfileChanges{FirstName: in.FirstName, LastName: in.LastName})
}

// UploadAvatar stores the image under avatars/<user>/ and points the profile at it.
func (s *UserService) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (string, error) {
	if s.storage == nil {
		return "", ErrStorageUnavailable
	}
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := path.Join("avatars", userID, uuid.NewString()+ext)
	url, err := s.storage.Upload(ctx, objectPath, contentType, r)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	if _, err := s.applyProfile(ctx, userID, entity.ProfileChanges{AvatarURL: &url}); err != nil {
		return "", err
	}
	return url, nil
}

func (s *UserService) applyProfile(ctx context.Context, userID string, ch entity.ProfileChanges) (*entity.User, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := u.UpdateProfile(ch, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.users.UpdateProfile(ctx, updated); err != nil {
		return nil, fmt.Errorf("%w: update profile: %w", ErrPersistence, err)
	}
	s.reindex(ctx, updated)
	s.events.Dispatch(ctx, updated.Events()...)
	return updated, nil
}

// UpdateRole is the admin operation that promotes or demotes a user.
func (s *UserService) UpdateRole(ctx context.Context, userID, role string) (*entity.User, error) {
	r, err := entity.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := u.WithRole(r, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.users.UpdateRole(ctx, updated); err != nil {
		return nil, fmt.Errorf("%w: update role: %w", ErrPersistence, err)
	}
	s.reindex(ctx, updated)
	s.events.Dispatch(ctx, updated.Events()...)
	return updated, nil
}

// SearchUsers queries the search index; an unconfigured index yields no hits.
func (s *UserService) SearchUsers(ctx context.Context, q string, size int) ([]UserInfo, error) {
	if s.index == nil {
		return []UserInfo{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	return s.index.Search(ctx, q, size)
}

func (s *UserService) reindex(ctx context.Context, u *entity.User) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, u); err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Warn("user index failed")
	}
}
