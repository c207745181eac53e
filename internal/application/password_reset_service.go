package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/domain/repository"
	"github.com/oksasatya/notism-go/pkg/helpers"
	"github.com/oksasatya/notism-go/pkg/metrics"
)

// ResetRequestedMessage is returned for every reset request, whether or not
// the email belongs to an account.
const ResetRequestedMessage = "If the email exists, a password reset link has been sent."

type PasswordResetService struct {
	users   repository.UserRepository
	tokens  repository.PasswordResetTokenRepository
	refresh *RefreshTokenStore
	tx      repository.Transactor
	hasher  PasswordHasher
	mail    EmailSender
	events  *EventDispatcher
	logger  *logrus.Logger
	ttl     time.Duration
	now     func() time.Time
}

func NewPasswordResetService(
	users repository.UserRepository,
	tokens repository.PasswordResetTokenRepository,
	refresh *RefreshTokenStore,
	tx repository.Transactor,
	hasher PasswordHasher,
	mail EmailSender,
	events *EventDispatcher,
	logger *logrus.Logger,
	ttl time.Duration,
) *PasswordResetService {
	return &PasswordResetService{
		users:   users,
		tokens:  tokens,
		refresh: refresh,
		tx:      tx,
		hasher:  hasher,
		mail:    mail,
		events:  events,
		logger:  logger,
		ttl:     ttl,
		now:     time.Now,
	}
}

// RequestReset issues a reset token for email, replacing any unused one, and
// mails it. The returned message never reveals whether the account exists.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (msg string, err error) {
	defer func() { metrics.ObserveAuth("password_reset_request", err) }()

	addr, err := entity.NewEmail(email)
	if err != nil {
		return ResetRequestedMessage, nil
	}
	u, err := s.users.GetByEmail(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug("password reset requested for unknown email")
		return ResetRequestedMessage, nil
	}
	if err != nil {
		return "", s.requestFailed(err, "load user")
	}
	if !u.CanLogin() {
		return ResetRequestedMessage, nil
	}

	raw, err := helpers.NewURLSafeToken()
	if err != nil {
		return "", s.requestFailed(err, "generate token")
	}
	now := s.now().UTC()
	tok := &entity.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: helpers.HashTokenHex(raw),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	// The email goes out before commit so a failed send leaves the previous
	// token usable.
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.tokens.InvalidateActiveForUser(ctx, u.ID); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		if err := s.tokens.Create(ctx, tok); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		if err := s.mail.SendPasswordResetEmail(ctx, u.Email, u.FullName(), raw, tok.ExpiresAt); err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", s.requestFailed(err, "issue token")
	}
	s.events.Dispatch(ctx, entity.NewPasswordResetRequested(u.ID, u.Email, tok.ExpiresAt, now))
	return ResetRequestedMessage, nil
}

func (s *PasswordResetService) requestFailed(err error, step string) error {
	s.logger.WithError(err).WithField("step", step).Error("password reset request failed")
	return ErrResetRequestFailed
}

// CompleteReset sets a new password using a valid reset token. The token is
// consumed and all refresh tokens of the user are revoked in the same
// transaction.
func (s *PasswordResetService) CompleteReset(ctx context.Context, token, newPassword string) (err error) {
	defer func() { metrics.ObserveAuth("password_reset_complete", err) }()

	pwd, err := entity.NewPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if token == "" {
		return ErrInvalidOrExpiredResetToken
	}
	hash, err := s.hasher.Hash(ctx, pwd.Plain())
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var updated *entity.User
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		tok, err := s.tokens.GetByTokenHashForUpdate(ctx, helpers.HashTokenHex(token))
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredResetToken
		}
		if err != nil {
			return fmt.Errorf("%w: lock reset token: %w", ErrPersistence, err)
		}
		if !tok.IsValid(s.now()) {
			return ErrInvalidOrExpiredResetToken
		}
		u, err := s.users.GetByID(ctx, tok.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: load user: %w", ErrPersistence, err)
		}
		updated = u.ResetPassword(hash, s.now())
		if err := s.users.UpdatePassword(ctx, updated); err != nil {
			return fmt.Errorf("%w: update password: %w", ErrPersistence, err)
		}
		if err := s.tokens.MarkUsed(ctx, tok.ID); err != nil {
			return fmt.Errorf("%w: mark token used: %w", ErrPersistence, err)
		}
		_, err = s.refresh.RevokeAll(ctx, u.ID)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.WithField("user_id", updated.ID).Info("password reset completed")
	s.events.Dispatch(ctx, updated.Events()...)
	return nil
}

// DeleteExpired removes reset tokens that expired before cutoff and all used ones.
func (s *PasswordResetService) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: delete reset tokens: %w", ErrPersistence, err)
	}
	return n, nil
}
