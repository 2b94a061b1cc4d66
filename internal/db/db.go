// Package db wires the Postgres connection pool shared by every store in
// the application, following the pool-tuning conventions of the teacher's
// config.Config (max open/idle conns, conn lifetimes, statement timeout
// appended to the DSN).
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pentedigital/extrashifty/internal/config"
)

// Open establishes a Postgres connection pool per cfg's DB settings and
// verifies connectivity with a Ping.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		return nil, fmt.Errorf("db: DATABASE_URL is required")
	}

	database, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return database, nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505) — the race-detection check used throughout the
// stores for idempotency-key and singleton-row collisions, the same check
// the teacher's ledger.Deposit performs against pq.Error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if e, ok := err.(*pq.Error); ok {
		pqErr = e
	} else {
		return false
	}
	return pqErr.Code == "23505"
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic.
func WithTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}

// LockWalletsInOrder acquires row locks ("SELECT ... FOR UPDATE") on two
// wallet ids in a fixed global order (lowest id first) to avoid deadlocks
// on cross-wallet operations (settlement, dispute release, cancellation
// compensation), per the concurrency model's ordering guarantee.
func LockWalletsInOrder(ctx context.Context, tx *sql.Tx, a, b int64) error {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	if _, err := tx.ExecContext(ctx, `SELECT id FROM wallets WHERE id = $1 FOR UPDATE`, first); err != nil {
		return fmt.Errorf("db: lock wallet %d: %w", first, err)
	}
	if second != first {
		if _, err := tx.ExecContext(ctx, `SELECT id FROM wallets WHERE id = $1 FOR UPDATE`, second); err != nil {
			return fmt.Errorf("db: lock wallet %d: %w", second, err)
		}
	}
	return nil
}

// LockWallet acquires a row lock on a single wallet id.
func LockWallet(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `SELECT id FROM wallets WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return fmt.Errorf("db: lock wallet %d: %w", id, err)
	}
	return nil
}
