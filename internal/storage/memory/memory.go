// Package memory is the in-process datastore used for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"fintrack/internal/accounts"
	"fintrack/internal/core"
)

type Store struct {
	mu       sync.Mutex
	txs      map[string]core.Transaction
	accounts map[string]accounts.Account
}

func New() *Store {
	return &Store{
		txs:      make(map[string]core.Transaction),
		accounts: make(map[string]accounts.Account),
	}
}

func (s *Store) ListByUser(_ context.Context, user core.Identity) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.txs {
		if tx.UserID == user {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, user core.Identity, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok || tx.UserID != user {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

func (s *Store) Insert(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = tx
	return nil
}

func (s *Store) Update(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.txs[tx.ID]
	if !ok || cur.UserID != tx.UserID {
		return core.ErrNotFound
	}
	s.txs[tx.ID] = tx
	return nil
}

func (s *Store) Delete(_ context.Context, user core.Identity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.txs[id]
	if !ok || cur.UserID != user {
		return core.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) CreateAccount(_ context.Context, a accounts.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.Email]; ok {
		return accounts.ErrEmailTaken
	}
	a.PasswordHash = append([]byte(nil), a.PasswordHash...)
	s.accounts[a.Email] = a
	return nil
}

func (s *Store) AccountByEmail(_ context.Context, email string) (accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[email]
	if !ok {
		return accounts.Account{}, core.ErrNotFound
	}
	a.PasswordHash = append([]byte(nil), a.PasswordHash...)
	return a, nil
}

func (s *Store) SetPasswordHash(_ context.Context, email string, hash []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[email]
	if !ok {
		return core.ErrNotFound
	}
	a.PasswordHash = append([]byte(nil), hash...)
	a.UpdatedAt = at
	s.accounts[email] = a
	return nil
}

// Close is a no-op so Store satisfies the same lifecycle as the SQLite store.
func (s *Store) Close() error { return nil }
