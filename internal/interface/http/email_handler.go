package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/pkg/mailer"
	"github.com/oksasatya/notism-go/pkg/response"
	"github.com/oksasatya/notism-go/pkg/validation"
)

// JobPublisher is satisfied by helpers.RabbitPublisher.
type JobPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

type EmailHandler struct {
	Pub     JobPublisher
	Logger  *logrus.Logger
	Enabled bool
}

func NewEmailHandler(pub JobPublisher, logger *logrus.Logger, enabled bool) *EmailHandler {
	return &EmailHandler{Pub: pub, Logger: logger, Enabled: enabled}
}

type sendEmailRequest struct {
	To       string         `json:"to" binding:"required,email"`
	Template string         `json:"template"` // optional: forgot_password, welcome
	Data     map[string]any `json:"data"`
	Subject  string         `json:"subject"` // required if no template
	Text     string         `json:"text"`
	HTML     string         `json:"html"`
}

// Send enqueues an email job to RabbitMQ.
func (h *EmailHandler) Send(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	job := mailer.EmailJob{To: req.To}
	if req.Template != "" {
		job.Template = req.Template
		job.Data = req.Data
	} else {
		job.Subject = req.Subject
		job.Text = req.Text
		job.HTML = req.HTML
	}
	if err := job.Validate(); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid email job", err.Error())
		return
	}

	if !h.Enabled || h.Pub == nil {
		response.Success(c, http.StatusAccepted, gin.H{"enqueued": false, "disabled": true}, "email sending disabled", nil)
		return
	}
	if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil {
		h.Logger.WithError(err).Warn("failed to publish email job")
		response.Error(c, http.StatusInternalServerError, "failed to enqueue", nil)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"enqueued": true}, "email enqueued", nil)
}
