package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/accounts"
	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/reset"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp, (*config.Config).Validate)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	ledgerOpts := []ledger.Option{ledger.WithLogger(logger)}
	if res.Publisher != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(res.Publisher))
	}
	book := ledger.New(res.Store, ledgerOpts...)

	secret := []byte(cfg.JWTSecret)
	acct := accounts.NewService(res.Store, auth.NewIssuer(secret, cfg.JWTTTL))
	tokens := reset.NewStore(res.Resets, reset.WithTTL(cfg.ResetTokenTTL))
	resets := reset.NewService(tokens, acct, res.Mailer, cfg.ResetLinkBase, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:             book,
		Accounts:           acct,
		Resets:             resets,
		Verifier:           auth.NewAuthenticator(secret),
		Mailer:             res.Mailer,
		Logger:             logger,
		ContactInbox:       cfg.EmailTo,
		MailConfigured:     cfg.MailConfigured() || res.Publisher != nil,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSOrigin:         cfg.CORSOrigin,
	})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	}()

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"reset_store", cfg.ResetStore)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
	}
	cancel()
	<-stopped
	logger.Info("Server stopped gracefully")
}
