package auth

import (
	"context"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const identityKey ContextKey = "identity"

// Verifier is the contract the middleware needs.
type Verifier interface {
	Verify(credential string) (core.Identity, error)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id core.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity stored by Middleware.
func IdentityFrom(ctx context.Context) (core.Identity, bool) {
	id, ok := ctx.Value(identityKey).(core.Identity)
	return id, ok && id != ""
}

// Middleware rejects unauthenticated requests with 401 and stores the
// verified identity for the handler, which passes it on explicitly.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Verify(r.Header.Get("Authorization"))
			if err != nil {
				logger := log.FromContext(r.Context())
				logger.WarnContext(r.Context(), "Authentication failed",
					log.FieldErrorType, log.ErrorTypeAuth,
					log.FieldPath, r.URL.Path,
					log.FieldReason, Reason(err))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="fintrack"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"error":"` + Reason(err) + `"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Reason maps an authentication failure to its client-facing message.
// Expiry is reported distinctly so clients know to log in again.
func Reason(err error) string {
	switch {
	case errors.Is(err, core.ErrMissingCredential):
		return "No token provided"
	case errors.Is(err, core.ErrCredentialExpired):
		return "Token expired"
	default:
		return "Invalid token"
	}
}
