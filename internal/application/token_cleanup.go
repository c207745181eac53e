package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/pkg/metrics"
)

// CleanupResult counts rows removed by one sweep.
type CleanupResult struct {
	RefreshTokens int64
	ResetTokens   int64
}

func (r CleanupResult) Total() int64 { return r.RefreshTokens + r.ResetTokens }

// TokenCleanupService deletes refresh and reset tokens that are revoked, used
// or expired for longer than the retention period.
type TokenCleanupService struct {
	refresh   *RefreshTokenStore
	resets    *PasswordResetService
	retention time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

func NewTokenCleanupService(refresh *RefreshTokenStore, resets *PasswordResetService, retention time.Duration, logger *logrus.Logger) *TokenCleanupService {
	return &TokenCleanupService{refresh: refresh, resets: resets, retention: retention, logger: logger, now: time.Now}
}

// Cleanup runs both deletes. A failure of one does not skip the other; the
// errors are joined.
func (s *TokenCleanupService) Cleanup(ctx context.Context) (CleanupResult, error) {
	cutoff := s.now().Add(-s.retention)
	var res CleanupResult

	n, refreshErr := s.refresh.DeleteExpired(ctx, cutoff)
	res.RefreshTokens = n
	if refreshErr != nil {
		s.logger.WithError(refreshErr).Error("refresh token cleanup failed")
	}

	n, resetErr := s.resets.DeleteExpired(ctx, cutoff)
	res.ResetTokens = n
	if resetErr != nil {
		s.logger.WithError(resetErr).Error("password reset token cleanup failed")
	}

	err := errors.Join(refreshErr, resetErr)
	metrics.ObserveCleanup(res.RefreshTokens, res.ResetTokens, err)
	s.logger.WithFields(logrus.Fields{
		"cutoff":         cutoff.UTC().Format(time.RFC3339),
		"refresh_tokens": res.RefreshTokens,
		"reset_tokens":   res.ResetTokens,
	}).Info("token cleanup finished")
	return res, err
}
