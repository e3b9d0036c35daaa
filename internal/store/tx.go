package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omarelbidi/bankcore/internal/metrics"
)

// ErrRollbackFailed marks the compound failure where a transaction could
// not be rolled back after a primary error. Both causes are joined onto
// it; use errors.Is to detect and errors.Join semantics to inspect.
var ErrRollbackFailed = errors.New("store: rollback failed")

// WithTx acquires one connection, opens a transaction, and runs fn
// against it. If fn returns nil the transaction commits; any error from
// fn (or from commit) triggers a rollback before the error propagates.
// The connection is released on every exit path, including panics.
//
// fn's error is returned as-is on a clean rollback, so business
// sentinels survive for the caller to classify. A rollback error never
// replaces the primary error; the two are joined under
// ErrRollbackFailed.
func WithTx(ctx context.Context, pool *Pool, fn func(tx Tx) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pool.Release(conn)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	start := time.Now()
	done := false
	defer func() {
		if !done {
			// Reached only when fn panicked; put the connection back in
			// a clean state before the panic continues.
			_ = tx.Rollback(ctx)
			metrics.Default.TransactionsRolledBack.Inc()
		}
	}()

	if err := fn(tx); err != nil {
		done = true
		metrics.Default.TransactionsRolledBack.Inc()
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(ErrRollbackFailed, err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		// A failed commit leaves no partial state behind; the server has
		// already discarded the transaction.
		done = true
		metrics.Default.TransactionsRolledBack.Inc()
		return fmt.Errorf("commit: %w", err)
	}
	done = true
	metrics.Default.TransactionsCommitted.Inc()
	metrics.Default.TransactionDuration.Observe(time.Since(start).Seconds())
	return nil
}

// WithConn acquires one connection for a read-only sequence of
// statements and guarantees release.
func WithConn(ctx context.Context, pool *Pool, fn func(conn Conn) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pool.Release(conn)
	return fn(conn)
}
