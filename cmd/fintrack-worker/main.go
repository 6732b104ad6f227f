package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/mail"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker, (*config.Config).ValidateWorker)
	logger.Info("Starting fintrack-worker")

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.Queues{
		Ledger: cfg.AMQPLedgerQueue,
		Email:  cfg.AMQPEmailQueue,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MailConfigured() {
		emails := worker.NewEmailWorker(mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}))
		g.Go(func() error {
			return client.ConsumeEmails(gctx, emails.HandleEmail)
		})
		logger.Info("Consuming email queue", log.FieldQueue, cfg.AMQPEmailQueue)
	} else {
		logger.Info("Email delivery disabled - no SMTP_HOST provided")
	}

	if cfg.SheetsConfigured() {
		sheetsClient, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			AuditSheet:      cfg.GoogleAuditSheet,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		audit := worker.NewSyncWorker(sheetsClient)
		g.Go(func() error {
			return client.ConsumeLedgerEvents(gctx, audit.HandleLedgerEvent)
		})
		logger.Info("Mirroring ledger events",
			log.FieldQueue, cfg.AMQPLedgerQueue,
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", sheetsClient.SheetName())
	} else {
		logger.Info("Ledger audit disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		cancel()
		client.Close()
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
