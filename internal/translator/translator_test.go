package translator

import (
	"strings"
	"testing"
)

func ctx() Context {
	return Context{CurrentDB: "appdb", User: "admin", Peer: "127.0.0.1:5555", ConnectionID: 7}
}

func TestInterceptVersionComment(t *testing.T) {
	st := Translate("SELECT @@version_comment", ctx())
	if st.Kind != KindIntercepted {
		t.Fatalf("kind = %v, want Intercepted", st.Kind)
	}
	if len(st.Rows) != 1 || len(st.Rows[0]) != 1 || st.Rows[0][0] == nil || *st.Rows[0][0] != "PostMyRustache" {
		t.Fatalf("rows = %v, want [[PostMyRustache]]", st.Rows)
	}
}

func TestInterceptConnectionID(t *testing.T) {
	st := Translate("select connection_id()", ctx())
	if st.Kind != KindIntercepted || *st.Rows[0][0] != "7" {
		t.Fatalf("got %+v", st)
	}
}

func TestShowVariablesReturnsZeroRows(t *testing.T) {
	st := Translate("SHOW VARIABLES", ctx())
	if st.Kind != KindIntercepted {
		t.Fatalf("kind = %v, want Intercepted", st.Kind)
	}
	if st.Rows != nil {
		t.Fatalf("rows = %v, want nil (zero rows)", st.Rows)
	}
	if len(st.Columns) != 2 {
		t.Fatalf("columns = %v, want 2", st.Columns)
	}
}

func TestInterceptSet(t *testing.T) {
	st := Translate("SET time_zone = 'UTC'", ctx())
	if st.Kind != KindNoOp {
		t.Fatalf("kind = %v, want NoOp", st.Kind)
	}
}

func TestInterceptUse(t *testing.T) {
	st := Translate("USE otherdb", ctx())
	if st.Kind != KindNoOp || st.SetDatabase == nil || *st.SetDatabase != "otherdb" {
		t.Fatalf("got %+v", st)
	}
}

func TestBacktickRewrite(t *testing.T) {
	st := Translate("SELECT `x` FROM `t`", ctx())
	if st.Kind != KindForwardedSQL {
		t.Fatalf("kind = %v, want ForwardedSQL (err=%v)", st.Kind, st.Err)
	}
	if len(st.Statements) != 1 || st.Statements[0] != `SELECT "x" FROM "t"` {
		t.Fatalf("got %q", st.Statements)
	}
}

func TestBacktickInsideStringLiteralUntouched(t *testing.T) {
	st := Translate("SELECT 'a `b` c'", ctx())
	if st.Kind != KindForwardedSQL {
		t.Fatalf("kind = %v, err=%v", st.Kind, st.Err)
	}
	if st.Statements[0] != "SELECT 'a `b` c'" {
		t.Fatalf("got %q", st.Statements[0])
	}
}

func TestAutoIncrementRewrite(t *testing.T) {
	st := Translate("CREATE TABLE u(id INT AUTO_INCREMENT PRIMARY KEY, n VARCHAR(10))", ctx())
	if st.Kind != KindForwardedSQL {
		t.Fatalf("kind = %v, err=%v", st.Kind, st.Err)
	}
	want := "CREATE TABLE u(id SERIAL PRIMARY KEY, n VARCHAR(10))"
	if st.Statements[0] != want {
		t.Fatalf("got %q, want %q", st.Statements[0], want)
	}
}

func TestBigintAutoIncrement(t *testing.T) {
	st := Translate("CREATE TABLE u(id BIGINT AUTO_INCREMENT PRIMARY KEY)", ctx())
	if st.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", st.Err)
	}
	if !strings.Contains(st.Statements[0], "BIGSERIAL") {
		t.Fatalf("got %q", st.Statements[0])
	}
}

func TestTypeKeywordSubstitutions(t *testing.T) {
	st := Translate("CREATE TABLE t(a TINYINT, b FLOAT, c DATETIME, d JSON, e BLOB) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4", ctx())
	if st.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", st.Err)
	}
	got := st.Statements[0]
	for _, want := range []string{"SMALLINT", "REAL", "TIMESTAMP", "JSONB", "BYTEA"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in rewritten statement, got %q", want, got)
		}
	}
	if strings.Contains(got, "ENGINE") || strings.Contains(got, "CHARSET") {
		t.Fatalf("table options not stripped: %q", got)
	}
}

func TestFunctionSubstitutions(t *testing.T) {
	st := Translate("SELECT NOW(), IFNULL(a,b), HEX(x)", ctx())
	if st.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", st.Err)
	}
	got := st.Statements[0]
	for _, want := range []string{"CURRENT_TIMESTAMP", "COALESCE(a,b)", "encode(x,'hex')"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestInsertIgnoreRewrite(t *testing.T) {
	st := Translate("INSERT IGNORE INTO t (a) VALUES (1)", ctx())
	if st.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", st.Err)
	}
	want := "INSERT INTO t (a) VALUES (1) ON CONFLICT DO NOTHING"
	if st.Statements[0] != want {
		t.Fatalf("got %q, want %q", st.Statements[0], want)
	}
}

func TestReplaceIntoIsError(t *testing.T) {
	st := Translate("REPLACE INTO t (a) VALUES (1)", ctx())
	if st.Kind != KindError {
		t.Fatalf("kind = %v, want Error", st.Kind)
	}
}

func TestMultiTableUpdateIsError(t *testing.T) {
	st := Translate("UPDATE a JOIN b ON a.x=b.x SET a.y=1", ctx())
	if st.Kind != KindError {
		t.Fatalf("kind = %v, want Error", st.Kind)
	}
	if st.Err.Code != 1064 {
		t.Fatalf("code = %d, want 1064", st.Err.Code)
	}
}

func TestMultiStatementSplit(t *testing.T) {
	st := Translate("SELECT 1; SELECT 2", ctx())
	if st.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", st.Err)
	}
	if len(st.Statements) != 2 || st.Statements[0] != "SELECT 1" || st.Statements[1] != "SELECT 2" {
		t.Fatalf("got %v", st.Statements)
	}
}

func TestAutoIncrementInsertGetsReturning(t *testing.T) {
	schema := map[string]string{}
	create := Translate("CREATE TABLE t(id INT AUTO_INCREMENT PRIMARY KEY)", Context{AutoIncrementPK: schema})
	if create.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", create.Err)
	}
	if create.NewAutoIncrementTables["t"] != "id" {
		t.Fatalf("NewAutoIncrementTables = %v, want map[t:id]", create.NewAutoIncrementTables)
	}
	for table, col := range create.NewAutoIncrementTables {
		schema[table] = col
	}

	insert := Translate("INSERT INTO t DEFAULT VALUES", Context{AutoIncrementPK: schema})
	if insert.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", insert.Err)
	}
	if !insert.ReturningID {
		t.Fatalf("ReturningID = false, want true")
	}
	want := `INSERT INTO t DEFAULT VALUES RETURNING "id"`
	if insert.Statements[0] != want {
		t.Fatalf("got %q, want %q", insert.Statements[0], want)
	}
}

func TestAutoIncrementPlainInsertGetsReturning(t *testing.T) {
	schema := map[string]string{"t": "id"}
	st := Translate("INSERT INTO t (n) VALUES ('a')", Context{AutoIncrementPK: schema})
	if st.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", st.Err)
	}
	if !st.ReturningID {
		t.Fatalf("ReturningID = false, want true")
	}
	want := `INSERT INTO t (n) VALUES ('a') RETURNING "id"`
	if st.Statements[0] != want {
		t.Fatalf("got %q, want %q", st.Statements[0], want)
	}
}

func TestMultiRowInsertSkipsReturning(t *testing.T) {
	schema := map[string]string{"t": "id"}
	st := Translate("INSERT INTO t (n) VALUES ('a'), ('b')", Context{AutoIncrementPK: schema})
	if st.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", st.Err)
	}
	if st.ReturningID {
		t.Fatalf("ReturningID = true, want false for multi-row insert")
	}
	if strings.Contains(st.Statements[0], "RETURNING") {
		t.Fatalf("got %q, did not want RETURNING", st.Statements[0])
	}
}

func TestInsertIntoUnknownTableSkipsReturning(t *testing.T) {
	schema := map[string]string{"t": "id"}
	st := Translate("INSERT INTO other (n) VALUES ('a')", Context{AutoIncrementPK: schema})
	if st.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", st.Err)
	}
	if st.ReturningID {
		t.Fatalf("ReturningID = true, want false for untracked table")
	}
}

func TestInsertWithExplicitReturningIsLeftAlone(t *testing.T) {
	schema := map[string]string{"t": "id"}
	raw := `INSERT INTO t (n) VALUES ('a') RETURNING "id"`
	st := Translate(raw, Context{AutoIncrementPK: schema})
	if st.Kind != KindForwardedSQL {
		t.Fatalf("err=%v", st.Err)
	}
	if st.ReturningID {
		t.Fatalf("ReturningID = true, want false when caller already appended RETURNING")
	}
	if st.Statements[0] != raw {
		t.Fatalf("got %q, want unchanged %q", st.Statements[0], raw)
	}
}

func TestIdempotentOnPlainStatement(t *testing.T) {
	raw := "SELECT id, name FROM accounts WHERE id = 1"
	st1 := Translate(raw, ctx())
	if st1.Kind != KindForwardedSQL || st1.Statements[0] != raw {
		t.Fatalf("first pass changed statement: %q", st1.Statements)
	}
	st2 := Translate(st1.Statements[0], ctx())
	if st2.Statements[0] != st1.Statements[0] {
		t.Fatalf("not idempotent: %q vs %q", st1.Statements[0], st2.Statements[0])
	}
}
