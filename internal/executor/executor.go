// Package executor runs translated SQL against the configured PostgreSQL
// backend and maps results back into MySQL wire shapes.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Result is what the executor hands back to the Protocol Session: either a
// row set (Columns non-nil, possibly zero rows) or a command-mode outcome
// (Columns nil).
type Result struct {
	Columns      []Column
	Rows         [][]*string
	AffectedRows uint64
	LastInsertID uint64
}

// Executor owns the PostgreSQL *sql.DB handle and the lease pool gating
// concurrent backend connections.
type Executor struct {
	pool   *Pool
	dbName string
}

// New builds an Executor from a libpq key=value DSN assembled by the caller
// from the gateway's DB_HOST/DB_USER/DB_PASSWORD/DB_NAME configuration.
func New(dsn, dbName string, maxConns int, acquireTimeout time.Duration) (*Executor, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening backend: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	return &Executor{pool: NewPool(db, maxConns, acquireTimeout), dbName: dbName}, nil
}

// Conn is a Session's exclusively-owned backend connection, acquired at
// authentication and released at session close (spec §3).
type Conn struct {
	lease *Lease
}

// Acquire leases a backend connection for the life of one Session.
func (e *Executor) Acquire(ctx context.Context) (*Conn, error) {
	lease, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{lease: lease}, nil
}

// Stats reports current backend connection lease accounting.
func (e *Executor) Stats() Stats { return e.pool.Stats() }

// SetOnExhausted registers a callback invoked each time a Session must wait
// for a backend connection because the pool is at capacity.
func (e *Executor) SetOnExhausted(cb func()) { e.pool.SetOnExhausted(cb) }

// Close releases the executor's underlying database handle.
func (e *Executor) Close() error { return e.pool.Close() }

// Release returns the connection to the pool.
func (c *Conn) Release() { c.lease.Release() }

// Ping verifies the leased connection is still alive.
func (c *Conn) Ping(ctx context.Context) error {
	return c.lease.conn.PingContext(ctx)
}

var queryModePrefix = regexp.MustCompile(`(?i)^\s*(select|show|with|values|explain)\b`)

// isQueryMode reports whether sql, with leading whitespace/comments
// stripped, begins with a statement keyword that produces rows (spec
// §4.4).
func isQueryMode(sqlText string) bool {
	return queryModePrefix.MatchString(stripLeadingComments(sqlText))
}

func stripLeadingComments(s string) string {
	for {
		trimmed := strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(trimmed, "--"):
			if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
				s = trimmed[idx+1:]
				continue
			}
			return ""
		case strings.HasPrefix(trimmed, "/*"):
			if idx := strings.Index(trimmed, "*/"); idx >= 0 {
				s = trimmed[idx+2:]
				continue
			}
			return ""
		default:
			return trimmed
		}
	}
}

// Execute runs one or more already-translated PostgreSQL statements in
// order on the session's connection. Per the Open Question in spec §9,
// a multi-statement batch is run best-effort in order without an implicit
// wrapping transaction — each statement commits (or fails) independently,
// and the gateway does not roll back earlier statements in the batch if a
// later one fails.
func (c *Conn) Execute(ctx context.Context, statements []string) (*Result, error) {
	var last *Result
	for i, stmt := range statements {
		res, err := c.executeOne(ctx, stmt)
		if err != nil {
			return nil, err
		}
		last = res
		_ = i
	}
	if last == nil {
		return &Result{}, nil
	}
	return last, nil
}

func (c *Conn) executeOne(ctx context.Context, stmt string) (*Result, error) {
	if isQueryMode(stmt) {
		return c.query(ctx, stmt)
	}
	return c.exec(ctx, stmt)
}

func (c *Conn) query(ctx context.Context, stmt string) (*Result, error) {
	rows, err := c.lease.conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	cols := make([]Column, len(colTypes))
	dbTypes := make([]string, len(colTypes))
	for i, ct := range colTypes {
		dbTypes[i] = ct.DatabaseTypeName()
		typeCode, length := mysqlTypeForPG(dbTypes[i])
		flags := uint16(0)
		if nullable, ok := ct.Nullable(); ok && !nullable {
			flags |= flagNotNull
		}
		cols[i] = Column{Name: ct.Name(), Type: typeCode, Length: length, Flags: flags}
	}

	var result Result
	result.Columns = cols

	for rows.Next() {
		dests := make([]any, len(cols))
		for i, dbType := range dbTypes {
			dests[i] = scanTarget(dbType)
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		row := make([]*string, len(cols))
		for i, dbType := range dbTypes {
			row[i] = formatValue(unwrapScanned(dests[i]), dbType)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Conn) exec(ctx context.Context, stmt string) (*Result, error) {
	sqlRes, err := c.lease.conn.ExecContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	affected, _ := sqlRes.RowsAffected()
	return &Result{AffectedRows: uint64(affected)}, nil
}

// ExecuteReturningID runs an INSERT statement that the translator has
// appended a RETURNING <pk> clause to (because the target table's
// auto-increment column was statically identified from an earlier CREATE
// TABLE in this session), reporting the returned value as the
// last-insert-id. Statements without a RETURNING clause never reach this
// path; Execute is used for everything else, and LAST_INSERT_ID stays 0 for
// those, per spec §4.4.
func (c *Conn) ExecuteReturningID(ctx context.Context, stmt string) (*Result, error) {
	var id int64
	row := c.lease.conn.QueryRowContext(ctx, stmt)
	if err := row.Scan(&id); err != nil {
		return nil, err
	}
	return &Result{AffectedRows: 1, LastInsertID: uint64(id)}, nil
}
