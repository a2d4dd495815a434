package translator

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/postmyrustache/gateway/internal/executor"
)

// interceptEntry is one row of spec §4.3's Intercept Table: a matcher and
// the canned response builder for it.
type interceptEntry struct {
	pattern *regexp.Regexp
	build   func(ctx Context) *Statement
}

func strPtr(s string) *string { return &s }

var interceptTable = []interceptEntry{
	{
		regexp.MustCompile(`(?i)^select\s+@@version_comment\s*$`),
		func(ctx Context) *Statement {
			return interceptedRow("@@version_comment", executor.TypeVarString, strPtr("PostMyRustache"))
		},
	},
	{
		regexp.MustCompile(`(?i)^select\s+@@version\s*$`),
		func(ctx Context) *Statement {
			return interceptedRow("@@version", executor.TypeVarString, strPtr("8.0.0"))
		},
	},
	{
		regexp.MustCompile(`(?i)^select\s+@@sql_mode\s*$`),
		func(ctx Context) *Statement {
			return interceptedRow("@@sql_mode", executor.TypeVarString, strPtr(""))
		},
	},
	{
		regexp.MustCompile(`(?i)^select\s+database\s*\(\s*\)\s*$`),
		func(ctx Context) *Statement {
			var v *string
			if ctx.CurrentDB != "" {
				v = strPtr(ctx.CurrentDB)
			}
			return interceptedRow("database()", executor.TypeVarString, v)
		},
	},
	{
		regexp.MustCompile(`(?i)^select\s+user\s*\(\s*\)\s*$`),
		func(ctx Context) *Statement {
			return interceptedRow("user()", executor.TypeVarString, strPtr(fmt.Sprintf("%s@%s", ctx.User, ctx.Peer)))
		},
	},
	{
		regexp.MustCompile(`(?i)^select\s+connection_id\s*\(\s*\)\s*$`),
		func(ctx Context) *Statement {
			return interceptedRow("connection_id()", executor.TypeLong, strPtr(strconv.FormatUint(uint64(ctx.ConnectionID), 10)))
		},
	},
	{
		regexp.MustCompile(`(?i)^show\s+variables(\s+like\s+.*)?$`),
		func(ctx Context) *Statement {
			return &Statement{
				Kind: KindIntercepted,
				Columns: []executor.Column{
					{Name: "Variable_name", Type: executor.TypeVarString},
					{Name: "Value", Type: executor.TypeVarString},
				},
			}
		},
	},
	{
		regexp.MustCompile(`(?i)^set\s+.*$`),
		func(ctx Context) *Statement {
			return &Statement{Kind: KindNoOp}
		},
	},
}

// USE is matched directly in matchIntercept rather than through this table
// since its canned response needs the captured database name threaded
// through, not just the static ctx every other entry closes over.

func interceptedRow(name string, typ byte, value *string) *Statement {
	return &Statement{
		Kind:    KindIntercepted,
		Columns: []executor.Column{{Name: name, Type: typ}},
		Rows:    [][]*string{{value}},
	}
}

var useStatement = regexp.MustCompile(`(?i)^use\s+(\S+)\s*$`)

// matchIntercept tries the intercept table against the trimmed,
// semicolon-stripped statement text, returning nil if nothing matches.
func matchIntercept(stmt string, ctx Context) *Statement {
	if m := useStatement.FindStringSubmatch(stmt); m != nil {
		db := m[1]
		return &Statement{Kind: KindNoOp, SetDatabase: &db}
	}
	for _, entry := range interceptTable {
		if entry.pattern.MatchString(stmt) {
			return entry.build(ctx)
		}
	}
	return nil
}
