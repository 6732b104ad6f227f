// Package storage is the SQLite datastore: transactions, accounts and reset
// tokens in one database file.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/accounts"
	"fintrack/internal/core"
	"fintrack/internal/reset"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

// DSN adds the pragmas every connection needs to a database path.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const txColumns = `id, user_id, description, amount_cents, type, category, date, created_at, updated_at`

func (r *SQLiteRepository) ListByUser(ctx context.Context, user core.Identity) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY date, created_at`, string(user))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, user core.Identity, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, string(user))
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, err
}

func (r *SQLiteRepository) Insert(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+txColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.UserID), tx.Description, tx.Amount.Cents,
		string(tx.Kind.Type()), tx.Kind.Category(), tx.Date.String(),
		tx.CreatedAt.UTC().Format(timeLayout), tx.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"amount_cents", tx.Amount.Cents,
		"type", tx.Kind.Type())
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		    SET description = ?, amount_cents = ?, type = ?, category = ?, date = ?, updated_at = ?
		  WHERE id = ? AND user_id = ?`,
		tx.Description, tx.Amount.Cents, string(tx.Kind.Type()), tx.Kind.Category(),
		tx.Date.String(), tx.UpdatedAt.UTC().Format(timeLayout),
		tx.ID, string(tx.UserID))
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, user core.Identity, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, string(user))
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var id, user, desc, typ, category, date, created, updated string
	var cents int64
	if err := s.Scan(&id, &user, &desc, &cents, &typ, &category, &date, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	kind, err := core.ParseKind(typ, category)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	createdAt, err := time.Parse(timeLayout, created)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s created_at: %w", id, err)
	}
	updatedAt, err := time.Parse(timeLayout, updated)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s updated_at: %w", id, err)
	}

	return core.Transaction{
		ID:          id,
		UserID:      core.Identity(user),
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Kind:        kind,
		Date:        d,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a accounts.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		string(a.ID), a.Email, a.PasswordHash,
		a.CreatedAt.UTC().Format(timeLayout), a.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return accounts.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AccountByEmail(ctx context.Context, email string) (accounts.Account, error) {
	var a accounts.Account
	var id, created, updated string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at, updated_at FROM accounts WHERE email = ?`, email).
		Scan(&id, &a.Email, &a.PasswordHash, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Account{}, core.ErrNotFound
	}
	if err != nil {
		return accounts.Account{}, fmt.Errorf("load account: %w", err)
	}
	a.ID = core.Identity(id)
	a.CreatedAt, _ = time.Parse(timeLayout, created)
	a.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return a, nil
}

func (r *SQLiteRepository) SetPasswordHash(ctx context.Context, email string, hash []byte, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE email = ?`,
		hash, at.UTC().Format(timeLayout), email)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(res)
}

// Put stores a reset token record and drops any rows already past expiry.
func (r *SQLiteRepository) Put(ctx context.Context, rec reset.Record, now time.Time) error {
	if _, err := r.PurgeExpiredTokens(ctx, now); err != nil {
		slog.WarnContext(ctx, "Failed to purge expired reset tokens", "error", err)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reset_tokens (token_hash, email, expires_at) VALUES (?, ?, ?)`,
		rec.Key, rec.Email, rec.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

// Take deletes the token row and returns it in a single statement, so two
// concurrent callers can never both receive the same record.
func (r *SQLiteRepository) Take(ctx context.Context, key string, now time.Time) (reset.Record, bool, error) {
	var (
		rec     = reset.Record{Key: key}
		expires int64
	)
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM reset_tokens WHERE token_hash = ? RETURNING email, expires_at`, key).
		Scan(&rec.Email, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return reset.Record{}, false, nil
	}
	if err != nil {
		return reset.Record{}, false, fmt.Errorf("take reset token: %w", err)
	}
	rec.ExpiresAt = time.Unix(0, expires)
	if !now.Before(rec.ExpiresAt) {
		return reset.Record{}, false, nil
	}
	return rec, true, nil
}

// PurgeExpiredTokens removes reset tokens whose expiry is at or before now.
func (r *SQLiteRepository) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge reset tokens: %w", err)
	}
	return res.RowsAffected()
}

// CleanExpired adapts PurgeExpiredTokens to the cache sweeper.
func (r *SQLiteRepository) CleanExpired() int {
	n, err := r.PurgeExpiredTokens(context.Background(), time.Now())
	if err != nil {
		slog.Warn("Failed to purge expired reset tokens", "error", err)
		return 0
	}
	return int(n)
}
