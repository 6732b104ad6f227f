package backend

import (
	"errors"
	"fmt"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/mail"
)

// Config holds configuration for backend creation
type Config struct {
	Type         BackendType
	SQLiteDBPath string

	// Reset tokens
	ResetStore         BackendType
	ResetTTL           time.Duration
	ResetSweepInterval time.Duration

	// AMQP is optional; an empty URL disables queued email and ledger events.
	AMQPURL         string
	AMQPExchange    string
	AMQPEmailQueue  string
	AMQPLedgerQueue string

	// SMTP is used in process when AMQP is off. An empty host falls back to
	// logging messages.
	SMTP mail.SMTPConfig
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{
		Type:               BackendType(appConfig.DataBackend),
		SQLiteDBPath:       appConfig.SQLiteDBPath,
		ResetStore:         BackendType(appConfig.ResetStore),
		ResetTTL:           appConfig.ResetTokenTTL,
		ResetSweepInterval: appConfig.ResetSweepInterval,
		AMQPURL:            appConfig.AMQPURL,
		AMQPExchange:       appConfig.AMQPExchange,
		AMQPEmailQueue:     appConfig.AMQPEmailQueue,
		AMQPLedgerQueue:    appConfig.AMQPLedgerQueue,
		SMTP: mail.SMTPConfig{
			Host:     appConfig.SMTPHost,
			Port:     appConfig.SMTPPort,
			Username: appConfig.SMTPUsername,
			Password: appConfig.SMTPPassword,
			From:     appConfig.EmailFrom,
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.ResetStore.IsValid() {
		return fmt.Errorf("invalid reset store type: %s", c.ResetStore)
	}
	if (c.Type == SQLiteBackend || c.ResetStore == SQLiteBackend) && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPEmailQueue == "" || c.AMQPLedgerQueue == "") {
		return errors.New("AMQP exchange and queue names are required when AMQP URL is set")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}
