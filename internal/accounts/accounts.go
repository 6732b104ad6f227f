// Package accounts handles registration, login and password changes. It is
// the collaborator that issues bearer credentials and that the reset
// workflow calls to replace a password.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
)

const MinPasswordLength = 8

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Account struct {
	ID           core.Identity
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store persists accounts keyed by normalized email. Lookups of unknown
// emails return core.ErrNotFound; creating a duplicate returns ErrEmailTaken.
type Store interface {
	CreateAccount(ctx context.Context, a Account) error
	AccountByEmail(ctx context.Context, email string) (Account, error)
	SetPasswordHash(ctx context.Context, email string, hash []byte, at time.Time) error
}

// TokenIssuer signs a bearer credential for an identity.
type TokenIssuer interface {
	Issue(id core.Identity) (token string, expiresAt time.Time, err error)
}

type Service struct {
	store  Store
	issuer TokenIssuer
	cost   int
	now    func() time.Time
}

type Option func(*Service)

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, issuer TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		issuer: issuer,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail lowercases and trims an address and checks its format.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", core.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", core.ErrInvalidEmail
	}
	return email, nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return core.ErrMissingPassword
	}
	if len(password) < MinPasswordLength {
		return core.ErrPasswordTooShort
	}
	return nil
}

func (s *Service) Register(ctx context.Context, email, password string) (Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Account{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return Account{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	a := Account{
		ID:           core.Identity(uuid.NewString()),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Account{}, ErrEmailTaken
		}
		return Account{}, core.Persistence("create account", err)
	}
	return a, nil
}

// Login checks the password and issues a bearer credential. Unknown email and
// wrong password fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	a, err := s.store.AccountByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", time.Time{}, core.Persistence("load account", err)
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.issuer.Issue(a.ID)
}

// Exists reports whether an account is registered for email.
func (s *Service) Exists(ctx context.Context, email string) (bool, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return false, err
	}
	_, err = s.store.AccountByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, core.Persistence("load account", err)
	}
	return true, nil
}

// SetPassword replaces the password of the account registered for email.
func (s *Service) SetPassword(ctx context.Context, email, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.store.SetPasswordHash(ctx, email, hash, s.now().UTC())
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotFound
	}
	if err != nil {
		return core.Persistence("set password", err)
	}
	return nil
}
