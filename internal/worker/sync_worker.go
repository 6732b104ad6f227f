// Package worker holds the queue consumers run by fintrack-worker.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/sheets"
)

// SyncWorker mirrors ledger events into the spreadsheet audit log.
type SyncWorker struct {
	sheets sheets.AuditWriter
}

func NewSyncWorker(w sheets.AuditWriter) *SyncWorker {
	return &SyncWorker{sheets: w}
}

// HandleLedgerEvent appends one audit row for msg. An error requeues the
// message.
func (w *SyncWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	ev := msg.Event
	slog.InfoContext(ctx, "Processing ledger event",
		"message_id", msg.ID,
		"action", ev.Action,
		"transaction_id", ev.Transaction.ID)

	ref, err := w.sheets.AppendEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}

	slog.InfoContext(ctx, "Ledger event mirrored",
		"message_id", msg.ID,
		"row_ref", ref)
	return nil
}
