// Package memory is an in-process audit log for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows [][]any
}

var _ sheets.AuditWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendEvent stores the row and returns a synthetic row reference.
func (s *Store) AppendEvent(_ context.Context, ev core.LedgerEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, sheets.Row(ev))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of every row appended so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
