// Package http exposes the ledger, aggregation and account flows as a JSON
// API. Handlers only decode, delegate and encode; every rule lives in the
// packages they call.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/accounts"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/mail"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

// Ledger is the subset of ledger.Ledger the handlers use.
type Ledger interface {
	Chronological(ctx context.Context, user core.Identity) ([]core.Transaction, error)
	Add(ctx context.Context, user core.Identity, in core.EntryInput) (core.Transaction, error)
	Update(ctx context.Context, user core.Identity, id string, in core.EntryInput) (core.Transaction, error)
	Delete(ctx context.Context, user core.Identity, id string) error
}

type Accounts interface {
	Register(ctx context.Context, email, password string) (accounts.Account, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error)
}

type Resets interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Deps are the collaborators a Server routes to.
type Deps struct {
	Ledger   Ledger
	Accounts Accounts
	Resets   Resets
	Verifier auth.Verifier
	Mailer   mail.Mailer
	Logger   *log.Logger

	// ContactInbox receives contact form submissions; empty disables the form.
	ContactInbox       string
	MailConfigured     bool
	RateLimitPerMinute int
	CORSOrigin         string
	Now                func() time.Time
}

type Server struct {
	http.Server
	ledger         Ledger
	accounts       Accounts
	resets         Resets
	mailer         mail.Mailer
	contactInbox   string
	mailConfigured bool
	now            func() time.Time
	started        time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	logger := deps.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:           deps.Ledger,
		accounts:         deps.Accounts,
		resets:           deps.Resets,
		mailer:           deps.Mailer,
		contactInbox:     deps.ContactInbox,
		mailConfigured:   deps.MailConfigured,
		now:              deps.Now,
		started:          deps.Now(),
		securityDetector: security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
			Now:               deps.Now,
		}),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	headersCfg := security.DefaultHeadersConfig()
	headersCfg.AllowedOrigin = deps.CORSOrigin
	headers := security.NewHeadersMiddleware(headersCfg)

	authed := auth.Middleware(deps.Verifier)
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests, please try again later").Write(w)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	mux.Handle("POST /api/user/register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/user/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /api/user/verify-token", authed(http.HandlerFunc(s.handleVerifyToken)))

	mux.Handle("GET /api/transactions", authed(http.HandlerFunc(s.handleListTransactions)))
	mux.Handle("POST /api/transactions", authed(http.HandlerFunc(s.handleAddTransaction)))
	mux.Handle("PUT /api/transactions/{id}", authed(http.HandlerFunc(s.handleUpdateTransaction)))
	mux.Handle("DELETE /api/transactions/{id}", authed(http.HandlerFunc(s.handleDeleteTransaction)))
	// Paths used by the existing browser client.
	mux.Handle("GET /api/transactions/all", authed(http.HandlerFunc(s.handleListTransactions)))
	mux.Handle("POST /api/transactions/add", authed(http.HandlerFunc(s.handleAddTransaction)))
	mux.Handle("PUT /api/transactions/update/{id}", authed(http.HandlerFunc(s.handleUpdateTransaction)))
	mux.Handle("DELETE /api/transactions/delete/{id}", authed(http.HandlerFunc(s.handleDeleteTransaction)))

	mux.Handle("GET /api/summary", authed(http.HandlerFunc(s.handleSummary)))
	mux.Handle("GET /api/chart/data", authed(http.HandlerFunc(s.handleChartData)))

	mux.Handle("POST /api/forgot-password", limited(http.HandlerFunc(s.handleForgotPassword)))
	mux.Handle("POST /api/reset-password", limited(http.HandlerFunc(s.handleResetPassword)))
	mux.Handle("POST /api/contact", limited(http.HandlerFunc(s.handleContact)))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.traceMiddleware.Middleware(s.securityDetector.Middleware(headers.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter sweep and drains the HTTP server. Safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// identity returns the caller resolved by auth.Middleware.
func identity(r *http.Request) core.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}
