package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/pkg/mailer"
)

var errPermanent = errors.New("permanent email failure")

// EmailWorker renders queued jobs and hands them to a mail sender.
type EmailWorker struct {
	sender mailer.Sender
	logger *logrus.Logger
}

func NewEmailWorker(sender mailer.Sender, logger *logrus.Logger) *EmailWorker {
	return &EmailWorker{sender: sender, logger: logger}
}

// Run consumes deliveries until ctx ends or the channel closes. Malformed
// jobs are dropped; delivery failures are requeued.
func (w *EmailWorker) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Warn("email delivery channel closed")
				return
			}
			err := w.Process(ctx, msg.Body)
			switch {
			case err == nil:
				_ = msg.Ack(false)
			case errors.Is(err, errPermanent):
				w.logger.WithError(err).Error("dropping email job")
				_ = msg.Nack(false, false)
			default:
				w.logger.WithError(err).Warn("email send failed, requeueing")
				_ = msg.Nack(false, true)
			}
		}
	}
}

// Process decodes, renders and sends one job.
func (w *EmailWorker) Process(ctx context.Context, body []byte) error {
	var job mailer.EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: decode: %w", errPermanent, err)
	}
	subject, text, html, err := job.Render()
	if err != nil {
		return fmt.Errorf("%w: %w", errPermanent, err)
	}
	c, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := w.sender.Send(c, job.To, subject, text, html); err != nil {
		return fmt.Errorf("send to mailgun: %w", err)
	}
	w.logger.WithFields(logrus.Fields{"to": job.To, "template": job.Template}).Info("email sent")
	return nil
}
