package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const minJWTSecretLength = 32

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	CORSOrigin         string

	// Logging
	LogLevel  string
	LogFormat string

	// Datastore
	DataBackend  string
	SQLiteDBPath string

	// Bearer tokens
	JWTSecret string
	JWTTTL    time.Duration

	// Password reset
	ResetTokenTTL      time.Duration
	ResetStore         string
	ResetSweepInterval time.Duration
	ResetLinkBase      string

	// Email
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	EmailTo      string

	// AMQP
	AMQPURL         string
	AMQPExchange    string
	AMQPEmailQueue  string
	AMQPLedgerQueue string

	// Google Sheets audit mirror
	GoogleSpreadsheetID      string
	GoogleAuditSheet         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		CORSOrigin:         getEnv("CORS_ORIGIN", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		ResetTokenTTL:      getEnvDuration("RESET_TOKEN_TTL", time.Hour),
		ResetStore:         getEnv("RESET_STORE", "memory"),
		ResetSweepInterval: getEnvDuration("RESET_SWEEP_INTERVAL", 0),
		ResetLinkBase:      getEnv("RESET_LINK_BASE", "http://localhost:5173/reset-password"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 465),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		EmailFrom:    getEnv("EMAIL_FROM", ""),
		EmailTo:      getEnv("EMAIL_TO", ""),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPEmailQueue:  getEnv("AMQP_EMAIL_QUEUE", "fintrack_email"),
		AMQPLedgerQueue: getEnv("AMQP_LEDGER_QUEUE", "fintrack_ledger"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleAuditSheet:         getEnv("GOOGLE_AUDIT_SHEET", "Audit"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}

	// Reuse the SMTP login as sender when no explicit sender is set.
	if cfg.EmailFrom == "" {
		cfg.EmailFrom = cfg.SMTPUsername
	}

	return cfg
}

func (c *Config) MailConfigured() bool   { return c.SMTPHost != "" }
func (c *Config) AMQPConfigured() bool   { return c.AMQPURL != "" }
func (c *Config) SheetsConfigured() bool { return c.GoogleSpreadsheetID != "" }

// Validate validates the API configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if c.CORSOrigin != "" {
		if u, err := url.Parse(c.CORSOrigin); err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" {
			errors = append(errors, fmt.Sprintf("invalid CORS origin '%s': must be scheme://host[:port]", c.CORSOrigin))
		}
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if !slices.Contains(validBackends, c.ResetStore) {
		errors = append(errors, fmt.Sprintf("invalid reset store '%s': must be one of %v", c.ResetStore, validBackends))
	}

	if c.DataBackend == "sqlite" || c.ResetStore == "sqlite" {
		errors = append(errors, c.validateSQLitePath()...)
	}

	// Bearer tokens
	if len(c.JWTSecret) < minJWTSecretLength {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d bytes", minJWTSecretLength))
	}
	if c.JWTTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid JWT TTL %v: must be at least 1 minute", c.JWTTTL))
	}

	// Password reset
	if c.ResetTokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reset token TTL %v: must be at least 1 minute", c.ResetTokenTTL))
	} else if c.ResetTokenTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reset token TTL %v: must be at most 24 hours", c.ResetTokenTTL))
	}
	if c.ResetSweepInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid reset sweep interval %v: must not be negative", c.ResetSweepInterval))
	}
	if u, err := url.Parse(c.ResetLinkBase); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid reset link base '%s': must be an absolute http(s) URL", c.ResetLinkBase))
	}

	// Email
	if c.SMTPHost != "" {
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
		}
		if c.EmailFrom == "" {
			errors = append(errors, "EMAIL_FROM (or SMTP_USERNAME) is required when SMTP_HOST is set")
		}
	}
	if c.EmailFrom != "" && !validEmail(c.EmailFrom) {
		errors = append(errors, fmt.Sprintf("invalid EMAIL_FROM '%s'", c.EmailFrom))
	}
	if c.EmailTo != "" && !validEmail(c.EmailTo) {
		errors = append(errors, fmt.Sprintf("invalid EMAIL_TO '%s'", c.EmailTo))
	}

	errors = append(errors, c.validateAMQP()...)

	return combine(errors)
}

// ValidateWorker validates what fintrack-worker needs: a broker and at least
// one job it can do.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	errors = append(errors, c.validateAMQP()...)

	if !c.MailConfigured() && !c.SheetsConfigured() {
		errors = append(errors, "nothing to do: set SMTP_HOST and/or GOOGLE_SPREADSHEET_ID")
	}
	if c.MailConfigured() {
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
		}
		if c.EmailFrom == "" {
			errors = append(errors, "EMAIL_FROM (or SMTP_USERNAME) is required when SMTP_HOST is set")
		}
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	return combine(errors)
}

func (c *Config) validateSQLitePath() []string {
	if c.SQLiteDBPath == "" {
		return []string{"SQLite database path cannot be empty when using sqlite"}
	}
	// Check if directory exists or can be created
	dir := filepath.Dir(c.SQLiteDBPath)
	if dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return []string{fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err)}
			}
		}
	}
	return nil
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPEmailQueue == "" || c.AMQPLedgerQueue == "" {
		errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
	} else if c.AMQPEmailQueue == c.AMQPLedgerQueue {
		errors = append(errors, "AMQP email and ledger queues must differ")
	}
	return errors
}

func combine(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
