// Package reset implements single-use, time-boxed password reset tokens and
// the forgot/reset password workflow built on them.
package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"fintrack/internal/core"
)

const (
	DefaultTTL = time.Hour

	// 32 random bytes, 256 bits of entropy.
	tokenBytes = 32
)

// Record is what the backend keeps per token. Key is the SHA-256 of the
// token so the raw secret never reaches storage or logs.
type Record struct {
	Key       string
	Email     string
	ExpiresAt time.Time
}

// Backend stores records. Take must remove and return the record for key in
// one atomic step, and must treat a record with now >= ExpiresAt as absent.
type Backend interface {
	Put(ctx context.Context, rec Record, now time.Time) error
	Take(ctx context.Context, key string, now time.Time) (Record, bool, error)
}

// Store issues and consumes reset tokens.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	random  io.Reader
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRandom replaces the entropy source. Only tests should need this.
func WithRandom(r io.Reader) Option {
	return func(s *Store) { s.random = r }
}

func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		ttl:     DefaultTTL,
		now:     time.Now,
		random:  rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) TTL() time.Duration { return s.ttl }

// Issue creates a token for email valid for the store TTL. Earlier tokens for
// the same email stay valid.
func (s *Store) Issue(ctx context.Context, email string) (string, time.Time, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(buf)

	now := s.now()
	rec := Record{
		Key:       Key(token),
		Email:     email,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.backend.Put(ctx, rec, now); err != nil {
		return "", time.Time{}, core.Persistence("store reset token", err)
	}
	return token, rec.ExpiresAt, nil
}

// Consume validates token and removes it. It returns the email the token was
// issued for, or core.ErrInvalidOrExpiredToken for unknown, expired and
// already used tokens alike.
func (s *Store) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", core.ErrInvalidOrExpiredToken
	}
	now := s.now()
	rec, ok, err := s.backend.Take(ctx, Key(token), now)
	if err != nil {
		return "", core.Persistence("consume reset token", err)
	}
	if !ok || !now.Before(rec.ExpiresAt) {
		return "", core.ErrInvalidOrExpiredToken
	}
	return rec.Email, nil
}

// Key is the storage key for token.
func Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Ref is a short, non-reversible reference to token for logs.
func Ref(token string) string {
	return Key(token)[:12]
}
