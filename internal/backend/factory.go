package backend

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/mail"
	"fintrack/internal/reset"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// assembly collects resources in creation order so a failure halfway
// through releases what was already opened.
type assembly struct {
	closers []func() error
}

func (a *assembly) add(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *assembly) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var res Result
	var a assembly
	fail := func(err error) (*Result, error) {
		_ = a.close()
		return nil, err
	}

	var sqliteRepo *storage.SQLiteRepository
	openSQLite := func() (*storage.SQLiteRepository, error) {
		if sqliteRepo != nil {
			return sqliteRepo, nil
		}
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		a.add(repo.Close)
		sqliteRepo = repo
		return repo, nil
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := openSQLite()
		if err != nil {
			return fail(err)
		}
		res.Store = repo
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		res.Store = memory.New()
		f.logger.Info("Initialized memory backend")
	}

	sweeper := cache.NewManager()
	a.add(func() error {
		sweeper.Stop()
		return nil
	})
	switch config.ResetStore {
	case SQLiteBackend:
		repo, err := openSQLite()
		if err != nil {
			return fail(err)
		}
		res.Resets = repo
		sweeper.Register(repo)
	case MemoryBackend:
		mem := reset.NewMemoryBackend(config.ResetTTL, nil)
		res.Resets = mem
		sweeper.Register(mem)
	}
	sweeper.StartCleanup(config.ResetSweepInterval)
	f.logger.Info("Initialized reset token store",
		"store", config.ResetStore.String(),
		"sweep_interval", config.ResetSweepInterval.String())

	client := f.connectAMQP(config)
	if client != nil {
		a.add(client.Close)
		res.Publisher = client
	}
	res.Mailer = f.selectMailer(config, client)

	res.Cleanup = a.close
	return &res, nil
}

// connectAMQP dials the broker when configured. A broker that is down at
// startup is logged and skipped so the API still serves requests.
func (f *DefaultFactory) connectAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, amqp.Queues{
		Ledger: config.AMQPLedgerQueue,
		Email:  config.AMQPEmailQueue,
	})
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events or queued email",
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err.Error())
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"email_queue", config.AMQPEmailQueue,
		"ledger_queue", config.AMQPLedgerQueue)
	return client
}

// selectMailer prefers the broker, then direct SMTP, then the log.
func (f *DefaultFactory) selectMailer(config Config, client *amqp.Client) mail.Mailer {
	switch {
	case client != nil:
		f.logger.Info("Email delivery via AMQP queue", log.FieldQueue, config.AMQPEmailQueue)
		return client
	case config.SMTP.Host != "":
		f.logger.Info("Email delivery via SMTP", "host", config.SMTP.Host, "port", config.SMTP.Port)
		return mail.NewSMTPMailer(config.SMTP)
	default:
		f.logger.Warn("No SMTP server configured, emails will only be logged")
		return mail.NewLogMailer(f.logger)
	}
}
