// Package session implements the per-connection MySQL protocol state
// machine: handshake, authentication, and the COM_QUERY/COM_INIT_DB/
// COM_QUIT/COM_PING command loop (spec §4.2).
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/postmyrustache/gateway/internal/codec"
	"github.com/postmyrustache/gateway/internal/executor"
	"github.com/postmyrustache/gateway/internal/gwerr"
	"github.com/postmyrustache/gateway/internal/metrics"
	"github.com/postmyrustache/gateway/internal/translator"
)

const (
	comQuit   byte = 0x01
	comInitDB byte = 0x02
	comQuery  byte = 0x03
	comPing   byte = 0x0E
)

// Phase is the session's coarse-grained lifecycle state (spec §3).
type Phase int

const (
	PhaseAwaitingHandshakeResponse Phase = iota
	PhaseCommand
	PhaseClosed
)

// Credentials is the single (username, password) pair the gateway accepts
// from MySQL clients, read once from configuration at startup.
type Credentials struct {
	Username string
	Password string
}

// Session is one client connection's mutable state (spec §3). Every field
// is touched only by the goroutine running Run — no locking is needed.
type Session struct {
	conn     net.Conn
	reader   *codec.Reader
	writer   *codec.Writer
	exec     *executor.Executor
	creds    Credentials
	metrics  *metrics.Collector

	connectionID uint32
	peer         string
	phase        Phase
	currentDB    string
	user         string
	scramble     []byte

	// schema is this session's running cache of table(lowercased)->
	// auto-increment column name, populated as CREATE TABLE statements are
	// translated and consulted so a later plain INSERT into the same table
	// gets a RETURNING clause appended (spec §4.4's LAST_INSERT_ID rule).
	schema map[string]string

	backend *executor.Conn
}

// New constructs a Session for a freshly accepted connection.
func New(conn net.Conn, connectionID uint32, creds Credentials, exec *executor.Executor, m *metrics.Collector) *Session {
	return &Session{
		conn:         conn,
		reader:       codec.NewReader(conn),
		writer:       codec.NewWriter(conn),
		exec:         exec,
		creds:        creds,
		metrics:      m,
		connectionID: connectionID,
		peer:         conn.RemoteAddr().String(),
		phase:        PhaseAwaitingHandshakeResponse,
		schema:       make(map[string]string),
	}
}

func (s *Session) writePacket(payload []byte) error {
	return s.writer.WritePacket(payload)
}

// Run drives the session to completion: handshake, authentication, then
// the command loop, until the client disconnects, issues COM_QUIT, or a
// fatal error occurs. The caller is responsible for closing conn.
func (s *Session) Run(ctx context.Context) error {
	if err := s.handshake(ctx); err != nil {
		return err
	}
	defer func() {
		if s.backend != nil {
			s.backend.Release()
		}
	}()

	for s.phase == PhaseCommand {
		if err := s.commandLoopOnce(ctx); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
	return nil
}

var errQuit = errors.New("client sent COM_QUIT")

// handshake performs §4.2.1 (send handshake) and §4.2.2 (verify the
// client's response), acquiring the session's single backend connection
// only once authentication succeeds.
func (s *Session) handshake(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.HandshakeDuration(time.Since(start))
		}
	}()

	scramble, err := newScramble()
	if err != nil {
		return fmt.Errorf("generating scramble: %w", err)
	}
	s.scramble = scramble

	if err := s.writePacket(buildInitialHandshake(s.connectionID, scramble)); err != nil {
		return fmt.Errorf("writing initial handshake: %w", err)
	}

	payload, err := s.reader.ReadPacket()
	if err != nil {
		return fmt.Errorf("reading handshake response: %w", err)
	}
	s.writer.SetSeq(s.reader.Seq() + 1)

	resp, err := parseHandshakeResponse(payload)
	if err != nil {
		ge := gwerr.Protocol("malformed handshake response: %v", err)
		s.writeErr(ge.Code, ge.SQLState, ge.Message)
		return ge
	}

	if !VerifyNativePassword(s.creds.Password, scramble, resp.authData) || resp.username != s.creds.Username {
		if s.metrics != nil {
			s.metrics.AuthFailure()
		}
		ge := gwerr.Auth("Access denied for user")
		s.writeErr(ge.Code, ge.SQLState, ge.Message)
		return ge
	}

	s.user = resp.username
	s.currentDB = resp.database

	backend, err := s.exec.Acquire(ctx)
	if err != nil {
		ge := gwerr.BackendConnection(err)
		s.writeErr(ge.Code, ge.SQLState, ge.Message)
		return ge
	}
	s.backend = backend

	if err := s.writeOK(0, 0); err != nil {
		return fmt.Errorf("writing auth OK: %w", err)
	}
	s.phase = PhaseCommand
	return nil
}

// commandLoopOnce reads and dispatches exactly one client command, per
// spec §4.2.3.
func (s *Session) commandLoopOnce(ctx context.Context) error {
	payload, err := s.reader.ReadPacket()
	if err != nil {
		return fmt.Errorf("reading command packet: %w", err)
	}
	s.writer.SetSeq(s.reader.Seq() + 1)

	if len(payload) == 0 {
		return s.writeErr(gwerr.Protocol("empty command packet").Code, "HY000", "empty command packet")
	}

	cmd := payload[0]
	body := payload[1:]

	switch cmd {
	case comQuit:
		s.phase = PhaseClosed
		return errQuit
	case comInitDB:
		s.currentDB = string(body)
		return s.writeOK(0, 0)
	case comQuery:
		return s.handleQuery(ctx, string(body))
	case comPing:
		return s.writeOK(0, 0)
	default:
		ge := gwerr.UnknownCommand(cmd)
		return s.writeErr(ge.Code, ge.SQLState, ge.Message)
	}
}

// handleQuery runs the Translator → Executor pipeline for a single
// COM_QUERY payload and emits the resulting packets, per spec §4.2.3 and
// §4.2.5.
func (s *Session) handleQuery(ctx context.Context, query string) error {
	start := time.Now()
	mode := "command"
	defer func() {
		if s.metrics != nil {
			s.metrics.QueryDuration(mode, time.Since(start))
		}
	}()

	tctx := translator.Context{
		CurrentDB:       s.currentDB,
		User:            s.user,
		Peer:            s.peer,
		ConnectionID:    s.connectionID,
		AutoIncrementPK: s.schema,
	}
	stmt := translator.Translate(query, tctx)

	if s.metrics != nil {
		s.metrics.QueryTranslated(kindLabel(stmt.Kind))
	}

	switch stmt.Kind {
	case translator.KindNoOp:
		if stmt.SetDatabase != nil {
			s.currentDB = *stmt.SetDatabase
		}
		return s.writeOK(0, 0)

	case translator.KindIntercepted:
		mode = "query"
		res := &executor.Result{Columns: stmt.Columns, Rows: stmt.Rows}
		return s.writeResultSet(res)

	case translator.KindError:
		mode = "error"
		return s.writeErr(stmt.Err.Code, stmt.Err.SQLState, stmt.Err.Message)

	case translator.KindForwardedSQL:
		for table, column := range stmt.NewAutoIncrementTables {
			s.schema[table] = column
		}
		return s.executeForwarded(ctx, stmt, &mode)

	default:
		mode = "error"
		ge := gwerr.Internal(fmt.Errorf("unhandled translated-statement kind %d", stmt.Kind))
		return s.writeErr(ge.Code, ge.SQLState, ge.Message)
	}
}

// kindLabel maps a translator.Kind to the metric label spec §7's
// query-translated counter uses.
func kindLabel(k translator.Kind) string {
	switch k {
	case translator.KindForwardedSQL:
		return "forwarded"
	case translator.KindIntercepted:
		return "intercepted"
	case translator.KindNoOp:
		return "noop"
	case translator.KindError:
		return "error"
	default:
		return "unknown"
	}
}

func (s *Session) executeForwarded(ctx context.Context, stmt *translator.Statement, mode *string) error {
	var res *executor.Result
	var err error
	if stmt.ReturningID {
		last := len(stmt.Statements) - 1
		if last > 0 {
			_, err = s.backend.Execute(ctx, stmt.Statements[:last])
		}
		if err == nil {
			res, err = s.backend.ExecuteReturningID(ctx, stmt.Statements[last])
		}
	} else {
		res, err = s.backend.Execute(ctx, stmt.Statements)
	}
	if err != nil {
		*mode = "error"
		ge := executor.MapError(err)
		if s.metrics != nil {
			s.metrics.BackendError(ge.SQLState)
		}
		if werr := s.writeErr(ge.Code, ge.SQLState, ge.Message); werr != nil {
			return werr
		}
		if ge.Kind.Fatal() {
			s.phase = PhaseClosed
			return ge
		}
		return nil
	}
	if res.Columns != nil {
		*mode = "query"
	} else {
		*mode = "command"
	}
	if s.metrics != nil {
		s.metrics.QueryExecuted(*mode)
	}
	return s.writeResultSet(res)
}

// Close terminates the underlying connection and releases the backend
// lease if one was acquired.
func (s *Session) Close() error {
	if s.backend != nil {
		s.backend.Release()
		s.backend = nil
	}
	return s.conn.Close()
}

// logf writes a session-prefixed operational log line.
func (s *Session) logf(format string, args ...any) {
	log.Printf("[session %d] "+format, append([]any{s.connectionID}, args...)...)
}
