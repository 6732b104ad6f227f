// Package auth verifies bearer credentials and resolves them to an identity.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/core"
)

const bearerPrefix = "Bearer "

// Claims is the signed payload. The identity travels in the "id" claim.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens against a shared secret.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Authenticator)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

func NewAuthenticator(secret []byte, opts ...Option) *Authenticator {
	a := &Authenticator{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ExtractBearer returns the token segment of an Authorization header value.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", core.ErrMissingCredential
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", core.ErrMissingCredential
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", core.ErrMissingCredential
	}
	return token, nil
}

// Verify resolves an Authorization header value to the caller's identity.
// Expired tokens fail with core.ErrCredentialExpired; every other defect
// fails with core.ErrInvalidCredential.
func (a *Authenticator) Verify(credential string) (core.Identity, error) {
	raw, err := ExtractBearer(credential)
	if err != nil {
		return "", err
	}

	var claims Claims
	_, err = jwt.ParseWithClaims(raw, &claims, a.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", fmt.Errorf("%w: %v", core.ErrCredentialExpired, err)
	default:
		return "", fmt.Errorf("%w: %v", core.ErrInvalidCredential, err)
	}

	if strings.TrimSpace(claims.ID) == "" {
		return "", fmt.Errorf("%w: missing identity claim", core.ErrInvalidCredential)
	}
	return core.Identity(claims.ID), nil
}

func (a *Authenticator) keyFunc(*jwt.Token) (any, error) {
	return a.secret, nil
}

// Issuer signs credentials for the login flow.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue returns a signed token embedding id that expires after the issuer TTL.
func (i *Issuer) Issue(id core.Identity) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		ID: string(id),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}
