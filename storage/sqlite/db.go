// Package sqlite implements the relational content store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/doccache/storage"
	_ "modernc.org/sqlite"
)

const maxBusyRetries = 3

// DB is the relational collaborator: a thin query helper over database/sql.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DB) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Open opens the database at dsn and applies the connection pragmas.
// In-memory databases are pinned to one connection so every query sees the same data.
func Open(dsn string, opts ...Option) (*DB, error) {
	d := &DB{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "sqlite")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	inMemory := strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	if !inMemory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d.db = db
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// FetchOne runs query and scans its first row.
// Returns storage.ErrNotFound when the query yields no rows.
func (d *DB) FetchOne(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	err := scan(d.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return mapError(err)
}

// FetchAll runs query and calls scan once per row.
func (d *DB) FetchAll(ctx context.Context, scan func(*sql.Rows) error, query string, args ...any) error {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return mapError(rows.Err())
}

// Execute runs a statement and returns the number of affected rows.
func (d *DB) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// ExecuteTransaction runs fn in a transaction, committing when fn returns nil.
// A busy database is retried a bounded number of times.
func (d *DB) ExecuteTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := range maxBusyRetries {
		err = d.transaction(ctx, fn)
		if err == nil || !isBusy(err) {
			return mapError(err)
		}
		d.logger.Debug("database busy, retrying transaction", "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 20 * time.Millisecond):
		}
	}
	return fmt.Errorf("transaction failed after %d retries: %w", maxBusyRetries, err)
}

func (d *DB) transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", storage.ErrDuplicateKey, err)
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
