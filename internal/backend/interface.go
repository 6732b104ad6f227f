// Package backend assembles the datastore, reset token backend, mailer and
// event publisher selected by configuration.
package backend

import (
	"context"

	"fintrack/internal/accounts"
	"fintrack/internal/ledger"
	"fintrack/internal/mail"
	"fintrack/internal/reset"
)

// DataStore persists transactions and accounts.
type DataStore interface {
	ledger.Repository
	accounts.Store
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result is everything the API server needs from the backend. Publisher is
// nil when no broker is configured.
type Result struct {
	Store     DataStore
	Resets    reset.Backend
	Mailer    mail.Mailer
	Publisher ledger.Publisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// BackendType names a storage implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
