// Package sheets mirrors ledger events into a spreadsheet audit log.
package sheets

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// AuditWriter appends one row per ledger event.
	AuditWriter interface {
		AppendEvent(ctx context.Context, ev core.LedgerEvent) (rowRef string, err error)
	}
)

// Header is the first row of the audit sheet.
var Header = []string{"Timestamp", "Action", "ID", "User", "Date", "Type", "Category", "Description", "Amount"}

// Row renders ev in Header column order. Amount is a two-decimal string so
// the sheet never sees a float.
func Row(ev core.LedgerEvent) []any {
	tx := ev.Transaction
	return []any{
		ev.Timestamp.UTC().Format(time.RFC3339),
		string(ev.Action),
		tx.ID,
		string(ev.UserID),
		tx.Date.String(),
		string(tx.Kind.Type()),
		tx.Kind.Category(),
		tx.Description,
		tx.Amount.String(),
	}
}
