// Package translator implements the pure MySQL-to-PostgreSQL SQL dialect
// rewrite spec.md §4.3 describes: intercept well-known introspection
// queries, rewrite everything else token-by-token respecting literal and
// comment boundaries, and reject statement shapes that can't be safely
// rewritten.
package translator

import (
	"strings"

	"github.com/postmyrustache/gateway/internal/executor"
	"github.com/postmyrustache/gateway/internal/gwerr"
)

// Kind is the tag of the Translated-statement closed sum (spec §3).
type Kind int

const (
	KindForwardedSQL Kind = iota
	KindIntercepted
	KindNoOp
	KindError
)

// Statement is the Translated statement tagged value. Exactly the fields
// relevant to Kind are meaningful; the rest are zero.
type Statement struct {
	Kind Kind

	// ForwardedSQL
	Statements  []string // one or more PostgreSQL statements to run in order
	ReturningID bool     // true when the final statement carries an appended RETURNING clause

	// NewAutoIncrementTables records table(lowercased)->auto-increment
	// column name for any CREATE TABLE within this statement that the
	// rewrite gave a SERIAL/BIGSERIAL primary key to. The caller folds
	// these into its per-session schema cache so a later plain INSERT into
	// the table can have RETURNING appended (spec §4.4's LAST_INSERT_ID
	// rule).
	NewAutoIncrementTables map[string]string

	// Intercepted
	Columns []executor.Column
	Rows    [][]*string // nil means zero rows, not one row of NULLs

	// NoOp
	SetDatabase *string // non-nil when this NoOp is a USE statement

	// Error
	Err *gwerr.Error
}

// Context carries the session-derived values intercepted statements
// reference (current db, connected user, peer address, connection id), and
// the session's running schema cache of auto-increment primary keys this
// translator has rewritten, keyed by lowercased table name.
type Context struct {
	CurrentDB    string
	User         string
	Peer         string
	ConnectionID uint32

	AutoIncrementPK map[string]string
}

// Translate runs the full pipeline of spec §4.3 over one raw SQL text
// from a single COM_QUERY payload.
func Translate(raw string, ctx Context) *Statement {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), ";")
	trimmed = strings.TrimSpace(trimmed)

	if trimmed == "" {
		return &Statement{Kind: KindNoOp}
	}

	if stmt := matchIntercept(trimmed, ctx); stmt != nil {
		return stmt
	}

	tokens, err := Tokenize(raw)
	if err != nil {
		return &Statement{Kind: KindError, Err: gwerr.Translation(err.Error())}
	}

	pieces := SplitTopLevelStatements(tokens)
	if len(pieces) == 0 {
		return &Statement{Kind: KindNoOp}
	}

	var out []string
	var returningID bool
	var newTables map[string]string
	for _, stmt := range pieces {
		res, terr := rewriteOne(stmt, ctx.AutoIncrementPK)
		if terr != nil {
			return &Statement{Kind: KindError, Err: terr}
		}
		out = append(out, res.sql)
		returningID = res.returningID
		if res.newAutoIncrement != nil {
			if newTables == nil {
				newTables = make(map[string]string)
			}
			newTables[res.newAutoIncrement.table] = res.newAutoIncrement.column
		}
	}

	return &Statement{Kind: KindForwardedSQL, Statements: out, ReturningID: returningID, NewAutoIncrementTables: newTables}
}

// autoIncrementTable is one CREATE TABLE's detected auto-increment primary
// key, surfaced out of rewriteOne so Translate can fold it into the
// returned Statement's NewAutoIncrementTables.
type autoIncrementTable struct {
	table  string
	column string
}

type rewriteResult struct {
	sql              string
	returningID      bool
	newAutoIncrement *autoIncrementTable
}

// rewriteOne applies steps 2–3 of spec §4.3 to a single already
// top-level-split statement. schema is the session's running map of
// table(lowercased)->auto-increment column name, consulted to decide
// whether a plain INSERT should have RETURNING appended.
func rewriteOne(stmt string, schema map[string]string) (rewriteResult, *gwerr.Error) {
	if IsReplaceInto(stmt) {
		return rewriteResult{}, gwerr.Translation("REPLACE INTO is not supported; no statically inferable primary key set")
	}
	if IsMultiTableUpdateOrDelete(stmt) {
		return rewriteResult{}, gwerr.Translation("multi-table UPDATE/DELETE is not supported: " + firstLine(stmt))
	}

	tokens, err := Tokenize(stmt)
	if err != nil {
		return rewriteResult{}, gwerr.Translation(err.Error())
	}
	tokens = ReplaceBackticks(tokens)
	stmt = Render(tokens)

	var newTable *autoIncrementTable
	if IsCreateOrAlterTable(stmt) {
		if table, column, ok := detectAutoIncrementTable(stmt); ok {
			newTable = &autoIncrementTable{table: table, column: column}
		}
		stmt = RewriteTypeKeywords(stmt)
	}

	stmt = RewriteFunctions(stmt)

	if rewritten, matched := RewriteInsertIgnore(stmt); matched {
		stmt = rewritten
	}

	var returningID bool
	if rewritten, matched := RewriteInsertReturning(stmt, schema); matched {
		stmt = rewritten
		returningID = true
	}

	if !CheckBalance(stmt) {
		return rewriteResult{}, gwerr.Translation("rewrite produced unbalanced parentheses: " + firstLine(stmt))
	}

	return rewriteResult{sql: stmt, returningID: returningID, newAutoIncrement: newTable}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
