package application

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/internal/domain/entity"
)

// EventDispatcher handles domain events after their unit of work committed.
// Handler failures are logged and never reach the caller.
type EventDispatcher struct {
	mail   EmailSender
	logger *logrus.Logger
}

func NewEventDispatcher(mail EmailSender, logger *logrus.Logger) *EventDispatcher {
	return &EventDispatcher{mail: mail, logger: logger}
}

func (d *EventDispatcher) Dispatch(ctx context.Context, events ...entity.DomainEvent) {
	if d == nil {
		return
	}
	for _, ev := range events {
		d.logger.WithFields(logrus.Fields{
			"event":   ev.EventName(),
			"user_id": ev.AggregateID(),
		}).Info("domain event")

		e, ok := ev.(entity.UserCreated)
		if !ok || d.mail == nil {
			continue
		}
		name := e.FirstName
		if name == "" {
			name = e.Email.String()
		}
		if err := d.mail.SendWelcomeEmail(ctx, e.Email, name); err != nil {
			d.logger.WithError(err).WithField("user_id", e.AggregateID()).Warn("welcome email failed")
		}
	}
}
