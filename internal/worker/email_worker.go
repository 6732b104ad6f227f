package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/mail"
)

// EmailWorker delivers queued emails through a real transport.
type EmailWorker struct {
	mailer mail.Mailer
}

func NewEmailWorker(m mail.Mailer) *EmailWorker {
	return &EmailWorker{mailer: m}
}

func (w *EmailWorker) HandleEmail(ctx context.Context, msg *amqp.EmailMessage) error {
	if err := w.mailer.Send(ctx, msg.Mail); err != nil {
		return fmt.Errorf("deliver email %s: %w", msg.ID, err)
	}
	slog.InfoContext(ctx, "Email delivered", "message_id", msg.ID)
	return nil
}
