package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Pool gates how many PostgreSQL backend connections are leased out at
// once, one per live Session, against a configured ceiling — adapted from
// the teacher's TenantPool acquire/wait-with-timeout mechanics, simplified
// from many tenant-keyed pools down to the single backend this gateway
// talks to, and leasing *sql.Conn values instead of dialing raw net.Conn
// itself (database/sql + lib/pq own the wire-level connection lifecycle;
// this layer only owns the one-lease-per-session accounting spec §3 and
// §5 require).
type Pool struct {
	db             *sql.DB
	maxConns       int
	acquireTimeout time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	active  int
	waiting int
	closed  bool

	onExhausted func()
}

// NewPool creates a lease pool over db, bounding concurrent leases at
// maxConns and failing Acquire after acquireTimeout of waiting.
func NewPool(db *sql.DB, maxConns int, acquireTimeout time.Duration) *Pool {
	p := &Pool{db: db, maxConns: maxConns, acquireTimeout: acquireTimeout}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetOnExhausted registers a callback invoked each time Acquire must wait
// because the pool is at capacity (wired to the pool-exhaustion metric).
func (p *Pool) SetOnExhausted(cb func()) { p.onExhausted = cb }

// Lease is a PostgreSQL backend connection checked out for one Session's
// entire lifetime.
type Lease struct {
	conn *sql.Conn
	pool *Pool
}

// Acquire checks out a lease, waiting up to the pool's acquire timeout (or
// ctx's deadline, whichever is sooner) if the pool is at capacity.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	deadline := time.Now().Add(p.acquireTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	p.mu.Lock()
	for {
		select {
		case <-ctx.Done():
			p.mu.Unlock()
			return nil, ctx.Err()
		default:
		}

		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("executor pool closed")
		}

		if p.active < p.maxConns {
			p.active++
			p.mu.Unlock()

			conn, err := p.db.Conn(ctx)
			if err != nil {
				p.mu.Lock()
				p.active--
				p.mu.Unlock()
				return nil, fmt.Errorf("acquiring backend connection: %w", err)
			}
			return &Lease{conn: conn, pool: p}, nil
		}

		p.waiting++
		if p.onExhausted != nil {
			p.onExhausted()
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.waiting--
			p.mu.Unlock()
			return nil, fmt.Errorf("acquire timeout (%s): backend connection pool exhausted", p.acquireTimeout)
		}

		timer := time.AfterFunc(remaining, func() { p.cond.Broadcast() })
		p.cond.Wait()
		timer.Stop()
		p.waiting--

		if time.Now().After(deadline) {
			p.mu.Unlock()
			return nil, fmt.Errorf("acquire timeout (%s): backend connection pool exhausted", p.acquireTimeout)
		}
	}
}

// Release returns the lease's slot to the pool and closes the underlying
// *sql.Conn (returning it to database/sql's own internal pool).
func (l *Lease) Release() {
	l.conn.Close()
	l.pool.mu.Lock()
	l.pool.active--
	l.pool.cond.Signal()
	l.pool.mu.Unlock()
}

// Stats reports current lease accounting, mirroring the teacher's
// pool.Stats shape (minus the tenant/db-type labels a single-backend
// gateway has no use for).
type Stats struct {
	Active  int
	Waiting int
	Max     int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Active: p.active, Waiting: p.waiting, Max: p.maxConns}
}

// Close marks the pool closed so later Acquire calls fail, wakes any
// waiting Acquire calls, and closes the underlying database handle. It does
// not wait for outstanding leases to be released.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return p.db.Close()
}
