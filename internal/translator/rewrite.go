package translator

import (
	"regexp"
	"strings"
)

// SplitTopLevelStatements splits sql at `;` characters that appear in a
// Code span outside of any literal, comment, or paren nesting — spec
// §4.3 step 5's "top-level ;-separated statements" rule. Empty trailing
// pieces (a trailing `;` with nothing after it) are dropped.
func SplitTopLevelStatements(tokens []Token) []string {
	var stmts []string
	var cur strings.Builder
	depth := 0

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for _, tok := range tokens {
		if tok.Kind != Code {
			cur.WriteString(tok.Text)
			continue
		}
		for i := 0; i < len(tok.Text); i++ {
			c := tok.Text[i]
			switch c {
			case '(':
				depth++
				cur.WriteByte(c)
			case ')':
				if depth > 0 {
					depth--
				}
				cur.WriteByte(c)
			case ';':
				if depth == 0 {
					flush()
					continue
				}
				cur.WriteByte(c)
			default:
				cur.WriteByte(c)
			}
		}
	}
	flush()
	return stmts
}

// ReplaceBackticks rewrites backtick-delimited identifiers to
// double-quoted form (spec §4.3 step 2.1), leaving every other span
// untouched.
func ReplaceBackticks(tokens []Token) []Token {
	out := make([]Token, len(tokens))
	for i, tok := range tokens {
		if tok.Kind != Backtick {
			out[i] = tok
			continue
		}
		inner := tok.Text[1 : len(tok.Text)-1]
		inner = strings.ReplaceAll(inner, "``", "`")
		out[i] = Token{Kind: DoubleQuoted, Text: `"` + inner + `"`}
	}
	return out
}

// mapCode applies fn to every Code-kind token's text and leaves every
// other token untouched, preserving the literal/comment-skipping
// invariant rewrite rules must respect.
func mapCode(tokens []Token, fn func(string) string) []Token {
	out := make([]Token, len(tokens))
	for i, tok := range tokens {
		if tok.Kind == Code {
			out[i] = Token{Kind: Code, Text: fn(tok.Text)}
		} else {
			out[i] = tok
		}
	}
	return out
}

var createOrAlterTable = regexp.MustCompile(`(?i)^\s*(create|alter)\s+table\b`)

// IsCreateOrAlterTable reports whether a (already top-level-split)
// statement is a CREATE TABLE / ALTER TABLE statement, the lexical scope
// spec §4.3 step 2.3's type-keyword substitutions are confined to.
func IsCreateOrAlterTable(stmt string) bool {
	return createOrAlterTable.MatchString(stmt)
}

// autoIncrementRewrites turns "<TYPE> ... AUTO_INCREMENT" into
// "SERIAL"/"BIGSERIAL" with the AUTO_INCREMENT token dropped, before the
// generic type-keyword table below would otherwise rewrite the same type
// name to something else.
var autoIncrementRewrites = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\bBIGINT\b(\s+UNSIGNED)?\s+AUTO_INCREMENT\b`), "BIGSERIAL"},
	{regexp.MustCompile(`(?i)\b(TINYINT|SMALLINT|MEDIUMINT|INT|INTEGER)\b(\s+UNSIGNED)?\s+AUTO_INCREMENT\b`), "SERIAL"},
}

// typeKeywordRewrites is spec §4.3 step 2.3's substitution table, ordered
// so multi-word patterns (e.g. "INT UNSIGNED") are tried before the
// single-word forms they'd otherwise be swallowed by.
var typeKeywordRewrites = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\b(INT|INTEGER)\s+UNSIGNED\b`), "BIGINT"},
	{regexp.MustCompile(`(?i)\bBIGINT\s+UNSIGNED\b`), "NUMERIC(20)"},
	{regexp.MustCompile(`(?i)\b(TINYINT|SMALLINT|MEDIUMINT)\b`), "SMALLINT"},
	{regexp.MustCompile(`(?i)\b(INT|INTEGER)\b`), "INTEGER"},
	{regexp.MustCompile(`(?i)\bFLOAT\b`), "REAL"},
	{regexp.MustCompile(`(?i)\bDOUBLE\b`), "DOUBLE PRECISION"},
	{regexp.MustCompile(`(?i)\bDATETIME\b`), "TIMESTAMP"},
	{regexp.MustCompile(`(?i)\b(TINYTEXT|MEDIUMTEXT|LONGTEXT)\b`), "TEXT"},
	{regexp.MustCompile(`(?i)\b(TINYBLOB|MEDIUMBLOB|LONGBLOB|BLOB)\b`), "BYTEA"},
	{regexp.MustCompile(`(?i)\b(VAR)?BINARY\s*\(\s*\d+\s*\)`), "BYTEA"},
	{regexp.MustCompile(`(?i)\bYEAR\b`), "SMALLINT"},
	{regexp.MustCompile(`(?i)\bBOOL(EAN)?\b`), "BOOLEAN"},
	{regexp.MustCompile(`(?i)\bJSON\b`), "JSONB"},
	{regexp.MustCompile(`(?i)\bENUM\s*\([^)]*\)`), "TEXT"},
	{regexp.MustCompile(`(?i)\bSET\s*\([^)]*\)`), "TEXT"},
}

var onUpdateCurrentTimestamp = regexp.MustCompile(`(?i)\s*ON\s+UPDATE\s+CURRENT_TIMESTAMP\b`)
var tableOptionsSuffix = regexp.MustCompile(`(?i)\)\s*(ENGINE\s*=\s*\w+|DEFAULT\s+CHARSET\s*=\s*\w+|COLLATE\s*=\s*\w+|\s)*\s*$`)
var strayUnsigned = regexp.MustCompile(`(?i)\s+UNSIGNED\b`)

// RewriteTypeKeywords applies spec §4.3 step 2.3 to a CREATE TABLE / ALTER
// TABLE statement's Code spans.
func RewriteTypeKeywords(stmt string) string {
	tokens, err := Tokenize(stmt)
	if err != nil {
		return stmt
	}
	tokens = mapCode(tokens, func(code string) string {
		for _, r := range autoIncrementRewrites {
			code = r.pattern.ReplaceAllString(code, r.replace)
		}
		for _, r := range typeKeywordRewrites {
			code = r.pattern.ReplaceAllString(code, r.replace)
		}
		code = onUpdateCurrentTimestamp.ReplaceAllString(code, "")
		code = strayUnsigned.ReplaceAllString(code, "")
		return code
	})
	out := Render(tokens)
	// Table option suffixes (ENGINE=..., DEFAULT CHARSET=..., COLLATE=...)
	// trail the closing paren of the column list; strip them back to that
	// paren.
	if loc := tableOptionsSuffixStart(out); loc >= 0 {
		out = out[:loc+1]
	}
	return out
}

// tableOptionsSuffixStart finds the index of the `)` that closes a CREATE
// TABLE's column list when trailing ENGINE=/DEFAULT CHARSET=/COLLATE=
// options follow it, returning -1 when there is nothing to trim.
func tableOptionsSuffixStart(stmt string) int {
	idx := tableOptionsSuffix.FindStringIndex(stmt)
	if idx == nil {
		return -1
	}
	// The match starts at the ')'; only trim if something beyond
	// whitespace actually follows it.
	rest := stmt[idx[0]:]
	if strings.TrimSpace(rest) == ")" {
		return -1
	}
	return idx[0]
}

var functionRewrites = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\bNOW\s*\(\s*\)`), "CURRENT_TIMESTAMP"},
	{regexp.MustCompile(`(?i)\bCURDATE\s*\(\s*\)`), "CURRENT_DATE"},
	{regexp.MustCompile(`(?i)\bCURTIME\s*\(\s*\)`), "CURRENT_TIME"},
	{regexp.MustCompile(`(?i)\bIFNULL\s*\(`), "COALESCE("},
	{regexp.MustCompile(`(?i)\bUNHEX\s*\(([^()]*)\)`), "decode($1,'hex')"},
	{regexp.MustCompile(`(?i)\bHEX\s*\(([^()]*)\)`), "encode($1,'hex')"},
}

// RewriteFunctions applies spec §4.3 step 2.4's whole-word function
// substitutions to a statement's Code spans.
func RewriteFunctions(stmt string) string {
	tokens, err := Tokenize(stmt)
	if err != nil {
		return stmt
	}
	tokens = mapCode(tokens, func(code string) string {
		for _, r := range functionRewrites {
			code = r.pattern.ReplaceAllString(code, r.replace)
		}
		return code
	})
	return Render(tokens)
}

var createTableName = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?"?([A-Za-z_][A-Za-z0-9_]*)"?`)
var autoIncrementColumnName = regexp.MustCompile(`(?i)"?([A-Za-z_][A-Za-z0-9_]*)"?\s+(?:BIGINT|TINYINT|SMALLINT|MEDIUMINT|INT|INTEGER)\b(?:\s+UNSIGNED)?\s+AUTO_INCREMENT\b`)

// detectAutoIncrementTable reports the table and column name of a CREATE
// TABLE statement's AUTO_INCREMENT column, before RewriteTypeKeywords
// rewrites the type and drops the AUTO_INCREMENT keyword. MySQL permits at
// most one AUTO_INCREMENT column per table, so the first match is the
// whole answer.
func detectAutoIncrementTable(stmt string) (table, column string, ok bool) {
	tm := createTableName.FindStringSubmatch(stmt)
	if tm == nil {
		return "", "", false
	}
	cm := autoIncrementColumnName.FindStringSubmatch(stmt)
	if cm == nil {
		return "", "", false
	}
	return strings.ToLower(tm[1]), cm[1], true
}

var insertIntoTableName = regexp.MustCompile(`(?i)^\s*INSERT\s+INTO\s+"?([A-Za-z_][A-Za-z0-9_]*)"?`)
var returningClause = regexp.MustCompile(`(?i)\bRETURNING\b`)
var valuesKeyword = regexp.MustCompile(`(?i)\bVALUES\b`)
var defaultValuesKeyword = regexp.MustCompile(`(?i)\bDEFAULT\s+VALUES\b`)

// RewriteInsertReturning appends a RETURNING clause naming the
// auto-increment column to a single-row INSERT into a table this
// translator has previously rewritten to a SERIAL/BIGSERIAL primary key,
// so the Executor can report LAST_INSERT_ID (spec §4.4: "0 unless the
// target can be statically identified"). schema maps lowercased table name
// to its auto-increment column name; a table the translator has not seen a
// CREATE TABLE for is absent from schema and left untouched.
func RewriteInsertReturning(stmt string, schema map[string]string) (string, bool) {
	if len(schema) == 0 {
		return stmt, false
	}
	if returningClause.MatchString(stmt) {
		return stmt, false
	}
	m := insertIntoTableName.FindStringSubmatch(stmt)
	if m == nil {
		return stmt, false
	}
	column, ok := schema[strings.ToLower(m[1])]
	if !ok {
		return stmt, false
	}
	if !isSingleRowInsert(stmt) {
		return stmt, false
	}
	return strings.TrimRight(stmt, " \t\r\n") + ` RETURNING "` + column + `"`, true
}

// isSingleRowInsert reports whether stmt's VALUES clause describes exactly
// one row (or is a DEFAULT VALUES insert), since LAST_INSERT_ID is only
// meaningful for a single inserted row.
func isSingleRowInsert(stmt string) bool {
	if defaultValuesKeyword.MatchString(stmt) {
		return true
	}
	tokens, err := Tokenize(stmt)
	if err != nil {
		return false
	}

	seenValues := false
	depth := 0
	closedOnce := false
	for _, tok := range tokens {
		if tok.Kind != Code {
			if seenValues && closedOnce {
				// Content (a literal/comment) trails the first row group:
				// be conservative and assume more rows follow.
				return false
			}
			continue
		}
		text := tok.Text
		if !seenValues {
			loc := valuesKeyword.FindStringIndex(text)
			if loc == nil {
				continue
			}
			seenValues = true
			text = text[loc[1]:]
		}
		for i := 0; i < len(text); i++ {
			switch text[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					if closedOnce {
						return false // a second row group
					}
					closedOnce = true
				}
			case ',':
				if depth == 0 && closedOnce {
					return false // a top-level comma after the first row: another row follows
				}
			}
		}
	}
	return seenValues && closedOnce
}

var insertIgnore = regexp.MustCompile(`(?i)^(\s*)INSERT\s+IGNORE\s+INTO\b`)
var replaceInto = regexp.MustCompile(`(?i)^\s*REPLACE\s+INTO\b`)
var multiTableUpdate = regexp.MustCompile(`(?i)^\s*UPDATE\s+\S+(\s*,\s*\S+|\s+(INNER|LEFT|RIGHT|CROSS)?\s*JOIN\s+)`)
var multiTableDelete = regexp.MustCompile(`(?i)^\s*DELETE\s+\S+\s+FROM\s+\S+\s+(INNER|LEFT|RIGHT|CROSS)?\s*JOIN\b`)

// RewriteInsertIgnore turns "INSERT IGNORE INTO ..." into
// "INSERT INTO ... ON CONFLICT DO NOTHING" (spec §4.3 step 5).
func RewriteInsertIgnore(stmt string) (string, bool) {
	if !insertIgnore.MatchString(stmt) {
		return stmt, false
	}
	return insertIgnore.ReplaceAllString(stmt, "${1}INSERT INTO") + " ON CONFLICT DO NOTHING", true
}

// IsReplaceInto reports the unsupported-in-MVP REPLACE INTO shape.
func IsReplaceInto(stmt string) bool { return replaceInto.MatchString(stmt) }

// IsMultiTableUpdateOrDelete reports the disallowed multi-table UPDATE/DELETE shapes.
func IsMultiTableUpdateOrDelete(stmt string) bool {
	return multiTableUpdate.MatchString(stmt) || multiTableDelete.MatchString(stmt)
}

// CheckBalance reports whether stmt has balanced parentheses outside
// literals/comments (spec §4.3 step 3). Unterminated literals are caught
// earlier by Tokenize itself.
func CheckBalance(stmt string) bool {
	tokens, err := Tokenize(stmt)
	if err != nil {
		return false
	}
	depth := 0
	for _, tok := range tokens {
		if tok.Kind != Code {
			continue
		}
		for _, c := range tok.Text {
			switch c {
			case '(':
				depth++
			case ')':
				depth--
				if depth < 0 {
					return false
				}
			}
		}
	}
	return depth == 0
}
