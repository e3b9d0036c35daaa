// Package store provides the persistence primitives for the ledger:
// a narrow statement-execution interface over the database driver, a
// fixed-size connection pool, and a scoped transaction runner.
//
// The rest of the application never touches the driver directly. Gateways
// and the transaction service issue parameterized statements through Conn
// and Tx, which keeps them testable against an in-memory fake and keeps
// the driver swap surface in one file.
package store

import (
	"context"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNoRows is returned by Row.Scan when a query matched nothing.
	ErrNoRows = errors.New("store: no rows in result set")

	// ErrDuplicateKey is returned by Exec when an insert violates a
	// unique constraint.
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// Row is a single result row. Scan returns ErrNoRows when the query
// matched no rows.
type Row interface {
	Scan(dest ...any) error
}

// Rows is an iterable result set. Callers must call Close and check Err
// after iteration.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Querier executes parameterized statements. Both connections and open
// transactions satisfy it, so gateway helpers can run against either.
type Querier interface {
	// Exec runs a statement and returns the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Tx is an open transaction on a single connection. Commit and Rollback
// are both terminal; a Tx must not be used after either.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is one physical store connection. Connections are owned by the
// Pool and must only be used between Acquire and Release.
type Conn interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a fresh connection. The Pool uses it at construction and
// whenever a pooled connection turns out to be broken.
type Dialer func(ctx context.Context) (Conn, error)

// PostgresDialer returns a Dialer that opens pgx connections for the
// given URL and registers the shopspring decimal codec so NUMERIC
// columns scan directly into decimal.Decimal.
func PostgresDialer(url string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		cfg, err := pgx.ParseConfig(url)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		conn, err := pgx.ConnectConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		pgxdecimal.Register(conn.TypeMap())
		return &pgxConn{conn: conn}, nil
	}
}

// pgxConn adapts *pgx.Conn to the Conn interface, translating driver
// errors into the store sentinels.
type pgxConn struct {
	conn *pgx.Conn
}

func (c *pgxConn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := c.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapExecErr(err)
	}
	return tag.RowsAffected(), nil
}

func (c *pgxConn) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *pgxConn) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return pgxRow{row: c.conn.QueryRow(ctx, sql, args...)}
}

func (c *pgxConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

func (c *pgxConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *pgxConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapExecErr(err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgxTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *pgxTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return pgxRow{row: t.tx.QueryRow(ctx, sql, args...)}
}

func (t *pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// pgxRow defers error mapping to Scan, mirroring pgx.Row.
type pgxRow struct {
	row pgx.Row
}

func (r pgxRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	return err
}

// mapExecErr translates unique-constraint violations (SQLSTATE 23505)
// into ErrDuplicateKey so callers don't depend on driver error types.
func mapExecErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}
