// Package mail hands account emails to the delivery queue.
package mail

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/config"
	"github.com/oksasatya/notism-go/internal/application"
	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/pkg/mailer"
	mailtpl "github.com/oksasatya/notism-go/pkg/mailer/templates"
)

// JSONPublisher is satisfied by helpers.RabbitPublisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueNotifier publishes template email jobs for the email worker.
type QueueNotifier struct {
	pub JSONPublisher
	cfg *config.Config
}

func NewQueueNotifier(pub JSONPublisher, cfg *config.Config) *QueueNotifier {
	return &QueueNotifier{pub: pub, cfg: cfg}
}

// ResetLink appends the token to the configured reset page URL.
func ResetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (n *QueueNotifier) SendPasswordResetEmail(ctx context.Context, to entity.Email, name, token string, expiresAt time.Time) error {
	data := mailtpl.NewForgotPasswordData(n.cfg, name, to.String(), ResetLink(n.cfg.ResetPasswordURL, token), expiresAt)
	return n.publish(ctx, mailer.EmailJob{To: to.String(), Template: mailtpl.ForgotPassword, Data: data})
}

func (n *QueueNotifier) SendWelcomeEmail(ctx context.Context, to entity.Email, name string) error {
	data := mailtpl.NewWelcomeData(n.cfg, name, to.String())
	return n.publish(ctx, mailer.EmailJob{To: to.String(), Template: mailtpl.Welcome, Data: data})
}

func (n *QueueNotifier) publish(ctx context.Context, job mailer.EmailJob) error {
	if err := n.pub.PublishJSON(ctx, job); err != nil {
		return fmt.Errorf("publish %s email: %w", job.Template, err)
	}
	return nil
}

// LogNotifier only logs; it stands in when MAIL_SEND_ENABLED=false.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordResetEmail(_ context.Context, to entity.Email, _ string, _ string, expiresAt time.Time) error {
	n.logger.WithFields(logrus.Fields{
		"to":         to.String(),
		"template":   mailtpl.ForgotPassword,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}).Info("email sending disabled; password reset email skipped")
	return nil
}

func (n *LogNotifier) SendWelcomeEmail(_ context.Context, to entity.Email, _ string) error {
	n.logger.WithFields(logrus.Fields{"to": to.String(), "template": mailtpl.Welcome}).
		Info("email sending disabled; welcome email skipped")
	return nil
}

var (
	_ application.EmailSender = (*QueueNotifier)(nil)
	_ application.EmailSender = (*LogNotifier)(nil)
)
