package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/accounts"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/mail"
)

// Directory is the slice of account management the workflow needs.
type Directory interface {
	Exists(ctx context.Context, email string) (bool, error)
	SetPassword(ctx context.Context, email, password string) error
}

// Service runs the forgot-password and reset-password flows. The token only
// ever leaves the process inside the reset email.
type Service struct {
	tokens   *Store
	dir      Directory
	mailer   mail.Mailer
	linkBase string
	logger   *log.Logger
}

func NewService(tokens *Store, dir Directory, mailer mail.Mailer, linkBase string, logger *log.Logger) *Service {
	return &Service{
		tokens:   tokens,
		dir:      dir,
		mailer:   mailer,
		linkBase: linkBase,
		logger:   logger.WithComponent(log.ComponentReset),
	}
}

// RequestReset mails a reset link to email when an account exists for it.
// Unknown addresses succeed silently so callers cannot probe for accounts.
// A link that fails to send is revoked before the error is returned.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email, err := accounts.NormalizeEmail(email)
	if err != nil {
		return err
	}
	ok, err := s.dir.Exists(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.InfoContext(ctx, "Reset requested for unknown email", log.FieldOperation, log.OpIssue)
		return nil
	}

	token, _, err := s.tokens.Issue(ctx, email)
	if err != nil {
		return err
	}
	msg, err := mail.ResetRequest(email, mail.ResetLink(s.linkBase, token), validFor(s.tokens.TTL()))
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		// Nobody can use a link that was never delivered.
		if _, rerr := s.tokens.Consume(ctx, token); rerr != nil && !errors.Is(rerr, core.ErrInvalidOrExpiredToken) {
			s.logger.WarnContext(ctx, "Failed to revoke undelivered reset token",
				log.FieldTokenRef, Ref(token),
				log.FieldError, rerr.Error())
		}
		return fmt.Errorf("send reset email: %w", err)
	}

	s.logger.InfoContext(ctx, "Reset token issued",
		log.FieldOperation, log.OpIssue,
		log.FieldTokenRef, Ref(token))
	return nil
}

// ResetPassword spends token and sets newPassword on the account it was
// issued for. The password is checked before the token is consumed so a
// rejected password does not burn the link.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return core.ErrMissingToken
	}
	if err := accounts.ValidatePassword(newPassword); err != nil {
		return err
	}

	email, err := s.tokens.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrInvalidOrExpiredToken) {
			s.logger.WarnContext(ctx, "Reset token rejected",
				log.FieldOperation, log.OpConsume,
				log.FieldTokenRef, Ref(token))
		}
		return err
	}

	if err := s.dir.SetPassword(ctx, email, newPassword); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrInvalidOrExpiredToken
		}
		return err
	}
	s.logger.InfoContext(ctx, "Password reset completed",
		log.FieldOperation, log.OpConsume,
		log.FieldTokenRef, Ref(token))

	msg, err := mail.ResetConfirmation(email)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to send reset confirmation",
			log.FieldOperation, log.OpSend,
			log.FieldError, err.Error())
	}
	return nil
}

func validFor(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d minutes", int(d.Round(time.Minute)/time.Minute))
	}
}
