// Package ledger owns per-user transactions. Every operation takes the
// caller's identity explicitly and never touches records owned by someone
// else.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Repository is the datastore port. Implementations scope every lookup by
// user and report a missing (user, id) pair as core.ErrNotFound.
type Repository interface {
	ListByUser(ctx context.Context, user core.Identity) ([]core.Transaction, error)
	Get(ctx context.Context, user core.Identity, id string) (core.Transaction, error)
	Insert(ctx context.Context, tx core.Transaction) error
	Update(ctx context.Context, tx core.Transaction) error
	Delete(ctx context.Context, user core.Identity, id string) error
}

// Publisher receives ledger events after a mutation is durable.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

type Ledger struct {
	repo   Repository
	pub    Publisher
	now    func() time.Time
	newID  func() string
	logger *log.Logger
}

type Option func(*Ledger)

// WithPublisher sets where mutation events go. Without one, events are dropped.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.pub = p }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func New(repo Repository, opts ...Option) *Ledger {
	l := &Ledger{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.FromContext(context.Background()).WithComponent(log.ComponentLedger)
	}
	return l
}

// List returns the caller's transactions in no particular order.
func (l *Ledger) List(ctx context.Context, user core.Identity) ([]core.Transaction, error) {
	txs, err := l.repo.ListByUser(ctx, user)
	if err != nil {
		return nil, l.persistence(ctx, log.OpList, err)
	}
	return txs, nil
}

// Chronological returns the caller's transactions sorted by date ascending,
// ties broken by creation time. This is the order aggregation expects.
func (l *Ledger) Chronological(ctx context.Context, user core.Identity) ([]core.Transaction, error) {
	txs, err := l.List(ctx, user)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date.Time) {
			return txs[i].Date.Before(txs[j].Date.Time)
		}
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
	return txs, nil
}

func (l *Ledger) Add(ctx context.Context, user core.Identity, in core.EntryInput) (core.Transaction, error) {
	entry, err := in.Normalize()
	if err != nil {
		return core.Transaction{}, err
	}

	now := l.now().UTC()
	tx := core.Transaction{
		ID:        l.newID(),
		UserID:    user,
		CreatedAt: now,
		UpdatedAt: now,
	}.Apply(entry)

	if err := l.repo.Insert(ctx, tx); err != nil {
		return core.Transaction{}, l.persistence(ctx, log.OpCreate, err)
	}

	l.applied(ctx, log.OpCreate, core.ActionAdd, tx)
	return tx, nil
}

// Update replaces the ledger-owned fields of the caller's transaction id. A
// transaction owned by someone else is reported as core.ErrNotFound.
func (l *Ledger) Update(ctx context.Context, user core.Identity, id string, in core.EntryInput) (core.Transaction, error) {
	current, err := l.get(ctx, user, id)
	if err != nil {
		return core.Transaction{}, err
	}

	entry, err := in.Normalize()
	if err != nil {
		return core.Transaction{}, err
	}

	tx := current.Apply(entry)
	tx.UpdatedAt = l.now().UTC()
	if err := l.repo.Update(ctx, tx); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, core.ErrNotFound
		}
		return core.Transaction{}, l.persistence(ctx, log.OpUpdate, err)
	}

	l.applied(ctx, log.OpUpdate, core.ActionUpdate, tx)
	return tx, nil
}

func (l *Ledger) Delete(ctx context.Context, user core.Identity, id string) error {
	current, err := l.get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := l.repo.Delete(ctx, user, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrNotFound
		}
		return l.persistence(ctx, log.OpDelete, err)
	}

	l.applied(ctx, log.OpDelete, core.ActionDelete, current)
	return nil
}

func (l *Ledger) get(ctx context.Context, user core.Identity, id string) (core.Transaction, error) {
	if id == "" {
		return core.Transaction{}, core.ErrNotFound
	}
	tx, err := l.repo.Get(ctx, user, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, l.persistence(ctx, log.OpRead, err)
	}
	if tx.UserID != user {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

func (l *Ledger) persistence(ctx context.Context, op string, err error) error {
	if errors.Is(err, core.ErrPersistence) {
		return err
	}
	l.logger.ErrorContext(ctx, "Ledger datastore call failed",
		log.FieldOperation, op,
		log.FieldErrorType, log.ErrorTypeDatabase,
		log.FieldError, err.Error())
	return core.Persistence(fmt.Sprintf("ledger %s", op), err)
}

func (l *Ledger) applied(ctx context.Context, op string, action core.Action, tx core.Transaction) {
	log.NewStructuredLogger(l.logger).LogTransaction(ctx, op,
		string(tx.UserID), tx.ID, string(tx.Kind.Type()), tx.Kind.Category(), tx.Amount.Cents)

	if l.pub == nil {
		return
	}
	ev := core.LedgerEvent{
		Action:      action,
		UserID:      tx.UserID,
		Transaction: tx,
		Timestamp:   l.now().UTC(),
	}
	// The mutation is already durable; a lost event must not undo it.
	if err := l.pub.PublishLedgerEvent(ctx, ev); err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldTransactionID, tx.ID,
			log.FieldError, err.Error())
	}
}
