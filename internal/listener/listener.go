// Package listener accepts MySQL wire connections and hands each one to
// its own Session goroutine, adapted from the teacher's proxy.Server
// accept loop — here there is only ever one protocol (MySQL-facing) and
// one backend kind (PostgreSQL), so the dbType-switched handler dispatch
// the teacher needed collapses into a single path.
package listener

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/postmyrustache/gateway/internal/executor"
	"github.com/postmyrustache/gateway/internal/metrics"
	"github.com/postmyrustache/gateway/internal/session"
)

// Listener accepts MySQL client connections and runs one Session per
// connection. The connection-id counter is the only state shared across
// sessions (spec §5/§9); everything else lives inside each Session
// goroutine.
type Listener struct {
	exec    *executor.Executor
	metrics *metrics.Collector
	creds   session.Credentials

	nextConnID atomic.Uint32

	ln net.Listener
	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Listener. creds is the single (username, password) pair
// clients must present (spec §6's MYSQL_USERNAME/MYSQL_PASSWORD).
func New(exec *executor.Executor, m *metrics.Collector, creds session.Credentials) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{exec: exec, metrics: m, creds: creds, ctx: ctx, cancel: cancel}
}

// SetCredentials replaces the credentials new sessions authenticate
// against, used by config hot-reload (spec §6).
func (l *Listener) SetCredentials(creds session.Credentials) {
	// Single word-sized struct copy; sessions already in flight keep using
	// whatever they read at handshake time, matching the "no reconnect
	// within session" rule in spec §6.
	l.creds = creds
}

// Listen binds addr ("host:port") and starts accepting connections.
func (l *Listener) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	l.ln = ln
	log.Printf("[listener] MySQL gateway listening on %s", addr)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.acceptLoop()
	}()
	return nil
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return
			default:
				log.Printf("[listener] accept error: %v", err)
				continue
			}
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConnection(conn)
		}()
	}
}

// handleConnection runs one Session to completion, isolating any panic
// inside it from the rest of the gateway (spec §5's failure-isolation
// guarantee: one session's crash must never take down another's).
func (l *Listener) handleConnection(conn net.Conn) {
	connID := l.nextConnID.Add(1)
	defer conn.Close()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[listener] session %d panicked: %v", connID, r)
		}
	}()

	if l.metrics != nil {
		l.metrics.SessionOpened()
		defer l.metrics.SessionClosed()
	}

	sess := session.New(conn, connID, l.creds, l.exec, l.metrics)
	if err := sess.Run(l.ctx); err != nil {
		log.Printf("[listener] session %d ended: %v", connID, err)
	}
}

// Stop gracefully shuts down the listener: stops accepting new
// connections and waits for in-flight sessions to finish.
func (l *Listener) Stop() {
	l.cancel()
	if l.ln != nil {
		l.ln.Close()
	}
	l.wg.Wait()
	log.Printf("[listener] stopped")
}
