package mailer

import (
	"errors"
	"fmt"
	"strings"

	mailtpl "github.com/oksasatya/notism-go/pkg/mailer/templates"
)

var ErrInvalidJob = errors.New("invalid email job")

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Either Template (with Data) or Subject with Text and/or HTML is set.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // forgot_password, welcome
	Data     map[string]any `json:"data,omitempty"`
}

// Validate checks the job can be rendered without looking at the templates.
func (j *EmailJob) Validate() error {
	if strings.TrimSpace(j.To) == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidJob)
	}
	if j.Template != "" {
		if !mailtpl.Known(j.Template) {
			return fmt.Errorf("%w: unknown template %q", ErrInvalidJob, j.Template)
		}
		return nil
	}
	if j.Subject == "" || (j.Text == "" && j.HTML == "") {
		return fmt.Errorf("%w: subject with text or html is required", ErrInvalidJob)
	}
	return nil
}

// ensureRecipient fills Email in template data from the recipient.
func (j *EmailJob) ensureRecipient() {
	if j.Data == nil {
		j.Data = map[string]any{}
	}
	if v, ok := j.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		j.Data["Email"] = j.To
	}
	if _, ok := j.Data["Type"]; !ok {
		j.Data["Type"] = j.Template
	}
}

// Render returns the final subject and bodies of the job.
func (j *EmailJob) Render() (subject, text, html string, err error) {
	if err := j.Validate(); err != nil {
		return "", "", "", err
	}
	if j.Template == "" {
		return j.Subject, j.Text, j.HTML, nil
	}
	j.ensureRecipient()
	subject, text, html, err = mailtpl.Render(j.Template, j.Data)
	if err != nil {
		return "", "", "", fmt.Errorf("render %s: %w", j.Template, err)
	}
	if j.Subject != "" {
		subject = j.Subject
	}
	return subject, text, html, nil
}
