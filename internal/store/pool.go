package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/omarelbidi/bankcore/internal/metrics"
)

var (
	// ErrPoolExhausted is returned by Acquire when every connection is
	// checked out.
	ErrPoolExhausted = errors.New("store: connection pool exhausted")

	// ErrPoolClosed is returned by Acquire after CloseAll.
	ErrPoolClosed = errors.New("store: connection pool closed")
)

// Pool owns a fixed set of store connections and hands them out
// exclusively. A caller holds a connection for the duration of one
// logical operation and must return it with Release on every exit path.
//
// The free list is a buffered channel of slots. A slot may hold a nil
// connection after a failed redial; Acquire dials a replacement before
// handing the slot out, so callers never see a known-broken connection.
type Pool struct {
	dial Dialer
	free chan *slot
	size int

	mu          sync.Mutex
	closed      bool
	waitTimeout time.Duration
}

type slot struct {
	conn Conn
}

// NewPool opens size connections eagerly and returns the pool. On a
// partial failure every already-opened connection is closed before the
// error is returned.
func NewPool(ctx context.Context, size int, dial Dialer) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	p := &Pool{
		dial: dial,
		free: make(chan *slot, size),
		size: size,
	}
	for i := 0; i < size; i++ {
		conn, err := dial(ctx)
		if err != nil {
			p.CloseAll(ctx)
			return nil, fmt.Errorf("open connection %d/%d: %w", i+1, size, err)
		}
		p.free <- &slot{conn: conn}
	}
	return p, nil
}

// SetAcquireWait makes Acquire block up to timeout for a free
// connection instead of failing fast on exhaustion. A zero timeout
// restores fail-fast.
func (p *Pool) SetAcquireWait(timeout time.Duration) {
	p.mu.Lock()
	p.waitTimeout = timeout
	p.mu.Unlock()
}

// Acquire returns a free connection. On exhaustion it fails fast with
// ErrPoolExhausted, unless SetAcquireWait enabled a bounded wait.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	select {
	case s := <-p.free:
		return p.checkout(ctx, s)
	default:
		if p.isClosed() {
			return nil, ErrPoolClosed
		}
		p.mu.Lock()
		wait := p.waitTimeout
		p.mu.Unlock()
		if wait > 0 {
			waitCtx, cancel := context.WithTimeout(ctx, wait)
			defer cancel()
			return p.AcquireWait(waitCtx)
		}
		metrics.Default.PoolExhausted.Inc()
		return nil, ErrPoolExhausted
	}
}

// AcquireWait blocks until a connection frees up or ctx expires. Callers
// that prefer a bounded wait over fail-fast pass a deadline context.
func (p *Pool) AcquireWait(ctx context.Context) (Conn, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}
	select {
	case s := <-p.free:
		return p.checkout(ctx, s)
	case <-ctx.Done():
		metrics.Default.PoolExhausted.Inc()
		return nil, fmt.Errorf("%w: %w", ErrPoolExhausted, ctx.Err())
	}
}

// checkout verifies the slot's connection and replaces it when broken.
// The slot is returned to the free list if the replacement dial fails,
// so pool capacity is never lost.
func (p *Pool) checkout(ctx context.Context, s *slot) (Conn, error) {
	if p.isClosed() {
		if s.conn != nil {
			_ = s.conn.Close(ctx)
		}
		return nil, ErrPoolClosed
	}
	if s.conn != nil && s.conn.Ping(ctx) == nil {
		metrics.Default.PoolAcquires.Inc()
		metrics.Default.PoolInUse.Inc()
		return s.conn, nil
	}
	if s.conn != nil {
		_ = s.conn.Close(ctx)
		s.conn = nil
	}
	conn, err := p.dial(ctx)
	if err != nil {
		p.free <- s
		return nil, fmt.Errorf("replace broken connection: %w", err)
	}
	s.conn = conn
	metrics.Default.PoolAcquires.Inc()
	metrics.Default.PoolInUse.Inc()
	return conn, nil
}

// Release returns a connection to the free set. Releasing a connection
// the caller does not hold is a caller error; the pool stays consistent
// by closing any connection it has no room for.
func (p *Pool) Release(conn Conn) {
	if conn == nil {
		return
	}
	metrics.Default.PoolInUse.Dec()
	if p.isClosed() {
		_ = conn.Close(context.Background())
		return
	}
	select {
	case p.free <- &slot{conn: conn}:
	default:
		_ = conn.Close(context.Background())
	}
}

// Size reports the fixed pool capacity.
func (p *Pool) Size() int { return p.size }

// Free reports how many connections are currently available.
func (p *Pool) Free() int { return len(p.free) }

// CloseAll closes every pooled connection. Connections still checked
// out are closed when released. CloseAll is idempotent.
func (p *Pool) CloseAll(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var firstErr error
	for {
		select {
		case s := <-p.free:
			if s.conn == nil {
				continue
			}
			if err := s.conn.Close(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		default:
			return firstErr
		}
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
