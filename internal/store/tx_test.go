package store

import (
	"context"
	"errors"
	"testing"
)

// txConn records transaction lifecycle calls for WithTx tests.
type txConn struct {
	stubConn
	beginErr error
	tx       *recordingTx
}

func (c *txConn) Begin(ctx context.Context) (Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	c.tx = &recordingTx{}
	return c.tx, nil
}

type recordingTx struct {
	committed   bool
	rolledBack  bool
	commitErr   error
	rollbackErr error
}

func (t *recordingTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return 1, nil
}

func (t *recordingTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return nil, errors.New("not implemented")
}

func (t *recordingTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return errRow{errors.New("not implemented")}
}

func (t *recordingTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *recordingTx) Rollback(ctx context.Context) error {
	if t.rollbackErr != nil {
		return t.rollbackErr
	}
	t.rolledBack = true
	return nil
}

func txPool(t *testing.T, conn *txConn) *Pool {
	t.Helper()
	pool, err := NewPool(context.Background(), 1, func(ctx context.Context) (Conn, error) {
		return conn, nil
	})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	return pool
}

func TestWithTx_CommitOnSuccess(t *testing.T) {
	ctx := context.Background()
	conn := &txConn{}
	pool := txPool(t, conn)
	defer pool.CloseAll(ctx)

	ran := false
	err := WithTx(ctx, pool, func(tx Tx) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	if !ran {
		t.Fatal("fn was not invoked")
	}
	if !conn.tx.committed {
		t.Error("transaction was not committed")
	}
	if conn.tx.rolledBack {
		t.Error("transaction was rolled back despite success")
	}
	if got := pool.Free(); got != 1 {
		t.Errorf("Free() after WithTx = %d, want 1 (connection leaked)", got)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	conn := &txConn{}
	pool := txPool(t, conn)
	defer pool.CloseAll(ctx)

	sentinel := errors.New("insufficient funds")
	err := WithTx(ctx, pool, func(tx Tx) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithTx() error = %v, want the fn error unchanged", err)
	}
	if conn.tx.committed {
		t.Error("transaction committed despite error")
	}
	if !conn.tx.rolledBack {
		t.Error("transaction was not rolled back")
	}
	if got := pool.Free(); got != 1 {
		t.Errorf("Free() after WithTx = %d, want 1 (connection leaked)", got)
	}
}

func TestWithTx_RollbackFailureChainsBothCauses(t *testing.T) {
	ctx := context.Background()
	conn := &txConn{}
	pool := txPool(t, conn)
	defer pool.CloseAll(ctx)

	primary := errors.New("balance update failed")
	rollback := errors.New("connection lost during rollback")

	err := WithTx(ctx, pool, func(tx Tx) error {
		conn.tx.rollbackErr = rollback
		return primary
	})
	if !errors.Is(err, ErrRollbackFailed) {
		t.Errorf("WithTx() error = %v, want ErrRollbackFailed", err)
	}
	if !errors.Is(err, primary) {
		t.Errorf("WithTx() error lost the primary cause: %v", err)
	}
	if !errors.Is(err, rollback) {
		t.Errorf("WithTx() error lost the rollback cause: %v", err)
	}
	if got := pool.Free(); got != 1 {
		t.Errorf("Free() after WithTx = %d, want 1 (connection leaked)", got)
	}
}

func TestWithTx_BeginFailureReleasesConn(t *testing.T) {
	ctx := context.Background()
	conn := &txConn{beginErr: errors.New("server shutting down")}
	pool := txPool(t, conn)
	defer pool.CloseAll(ctx)

	err := WithTx(ctx, pool, func(tx Tx) error { return nil })
	if err == nil {
		t.Fatal("WithTx() expected begin error")
	}
	if got := pool.Free(); got != 1 {
		t.Errorf("Free() after begin failure = %d, want 1", got)
	}
}

func TestWithTx_PoolExhaustionPropagates(t *testing.T) {
	ctx := context.Background()
	conn := &txConn{}
	pool := txPool(t, conn)
	defer pool.CloseAll(ctx)

	held, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer pool.Release(held)

	err = WithTx(ctx, pool, func(tx Tx) error { return nil })
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("WithTx() error = %v, want ErrPoolExhausted", err)
	}
}

func TestWithTx_PanicRollsBackAndReleases(t *testing.T) {
	ctx := context.Background()
	conn := &txConn{}
	pool := txPool(t, conn)
	defer pool.CloseAll(ctx)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic did not propagate")
			}
		}()
		_ = WithTx(ctx, pool, func(tx Tx) error {
			panic("handler bug")
		})
	}()

	if !conn.tx.rolledBack {
		t.Error("transaction was not rolled back after panic")
	}
	if got := pool.Free(); got != 1 {
		t.Errorf("Free() after panic = %d, want 1 (connection leaked)", got)
	}
}
