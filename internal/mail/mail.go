// Package mail builds and delivers outbound messages: reset links, reset
// confirmations and contact form submissions.
package mail

import (
	"context"
	"errors"
	"strings"

	"fintrack/internal/log"
)

// Message is a single HTML email.
type Message struct {
	To      string `json:"to"`
	ReplyTo string `json:"replyTo,omitempty"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.To) == "":
		return errors.New("mail: recipient is required")
	case strings.TrimSpace(m.Subject) == "":
		return errors.New("mail: subject is required")
	case strings.ContainsAny(m.To+m.ReplyTo+m.Subject, "\r\n"):
		return errors.New("mail: header values must not contain line breaks")
	}
	return nil
}

// Mailer delivers a message or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP server is configured.
type LogMailer struct {
	logger *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	return &LogMailer{logger: logger.WithComponent(log.ComponentMail)}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "Email not sent, no SMTP configured",
		log.FieldEmail, msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.HTML))
	return nil
}
