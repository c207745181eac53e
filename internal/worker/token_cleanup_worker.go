// Package worker runs background loops outside the request path.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/internal/application"
)

// Cleaner is satisfied by application.TokenCleanupService.
type Cleaner interface {
	Cleanup(ctx context.Context) (application.CleanupResult, error)
}

// TokenCleanupWorker sweeps expired tokens once at start and then every
// interval until its context ends.
type TokenCleanupWorker struct {
	cleaner  Cleaner
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger
}

func NewTokenCleanupWorker(cleaner Cleaner, interval time.Duration, logger *logrus.Logger) *TokenCleanupWorker {
	return &TokenCleanupWorker{cleaner: cleaner, interval: interval, timeout: 5 * time.Minute, logger: logger}
}

func (w *TokenCleanupWorker) Run(ctx context.Context) {
	w.logger.WithField("interval", w.interval.String()).Info("token cleanup worker started")
	t := time.NewTicker(w.interval)
	defer t.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("token cleanup worker stopped")
			return
		case <-t.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Errors and panics are logged, never
// propagated.
func (w *TokenCleanupWorker) RunOnce(ctx context.Context) (res application.CleanupResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("token cleanup panicked: %v", r)
			w.logger.WithField("panic", r).Error("token cleanup panicked")
		}
	}()
	c, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	res, err = w.cleaner.Cleanup(c)
	if err != nil {
		w.logger.WithError(err).Error("token cleanup cycle failed")
	}
	return res, err
}
