package core

import "time"

// Action names a ledger mutation.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// LedgerEvent records one successful ledger mutation. For deletes,
// Transaction is the record as it was just before removal.
type LedgerEvent struct {
	Action      Action      `json:"action"`
	UserID      Identity    `json:"userId"`
	Transaction Transaction `json:"transaction"`
	Timestamp   time.Time   `json:"timestamp"`
}
