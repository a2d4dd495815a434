package executor

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// formatValue renders a single scanned column value in the textual form
// the MySQL text protocol expects (spec §4.4's "Textual formatting"
// column). nil denotes SQL NULL.
func formatValue(v any, dbType string) *string {
	if v == nil {
		return nil
	}

	var s string
	switch val := v.(type) {
	case bool:
		if val {
			s = "1"
		} else {
			s = "0"
		}
	case []byte:
		switch dbType {
		case "BYTEA":
			s = string(val)
		default:
			s = string(val)
		}
	case string:
		s = val
	case int64:
		s = strconv.FormatInt(val, 10)
	case float64:
		switch dbType {
		case "FLOAT4":
			s = strconv.FormatFloat(val, 'g', -1, 32)
		default:
			s = strconv.FormatFloat(val, 'g', -1, 64)
		}
	case time.Time:
		s = formatTime(val, dbType)
	default:
		s = fmt.Sprintf("%v", val)
	}
	return &s
}

func formatTime(t time.Time, dbType string) string {
	switch dbType {
	case "DATE":
		return t.Format("2006-01-02")
	case "TIME", "TIMETZ":
		if t.Nanosecond() != 0 {
			return t.Format("15:04:05.000000")
		}
		return t.Format("15:04:05")
	default: // TIMESTAMP, TIMESTAMPTZ
		if t.Nanosecond() != 0 {
			return t.Format("2006-01-02 15:04:05.000000")
		}
		return t.Format("2006-01-02 15:04:05")
	}
}

// scanTarget returns a fresh scan destination appropriate for a column's
// reported database type, matched against formatValue's expectations.
func scanTarget(dbType string) any {
	switch dbType {
	case "BOOL":
		return new(sql.NullBool)
	case "INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL":
		return new(sql.NullInt64)
	case "FLOAT4", "FLOAT8":
		return new(sql.NullFloat64)
	case "DATE", "TIME", "TIMETZ", "TIMESTAMP", "TIMESTAMPTZ":
		return new(sql.NullTime)
	default:
		return new(sql.NullString)
	}
}

// unwrapScanned extracts the underlying value (or nil) from one of the
// sql.NullXxx wrappers scanTarget produces.
func unwrapScanned(dest any) any {
	switch v := dest.(type) {
	case *sql.NullBool:
		if v.Valid {
			return v.Bool
		}
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullFloat64:
		if v.Valid {
			return v.Float64
		}
	case *sql.NullTime:
		if v.Valid {
			return v.Time
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	}
	return nil
}
