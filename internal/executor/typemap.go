package executor

// MySQL column type codes, the finite set spec §3 enumerates.
const (
	TypeTiny      byte = 0x01
	TypeShort     byte = 0x02
	TypeLong      byte = 0x03
	TypeFloat     byte = 0x04
	TypeDouble    byte = 0x05
	TypeNull      byte = 0x06
	TypeLongLong  byte = 0x08
	TypeDate      byte = 0x0A
	TypeTime      byte = 0x0B
	TypeDatetime  byte = 0x0C
	TypeVarString byte = 0xFD
	TypeString    byte = 0xFE
	TypeDecimal   byte = 0x00
	TypeBlob      byte = 0xFC
	TypeTimestamp byte = 0x07
)

const flagNotNull uint16 = 0x0001

// Column is a server->client column descriptor (spec §3).
type Column struct {
	Name     string
	Type     byte
	Length   uint32
	Flags    uint16
	Decimals byte
}

// mysqlTypeForPG maps a lib/pq ColumnType.DatabaseTypeName() result to a
// MySQL column descriptor shape, per the OID-class table in spec §4.4.
// lib/pq reports type names rather than raw OIDs directly, so the mapping
// keys on the name it returns for each of the spec's listed OID classes.
func mysqlTypeForPG(dbType string) (mysqlType byte, length uint32) {
	switch dbType {
	case "INT2":
		return TypeShort, 6
	case "INT4", "SERIAL":
		return TypeLong, 11
	case "INT8", "BIGSERIAL":
		return TypeLongLong, 20
	case "FLOAT4":
		return TypeFloat, 12
	case "FLOAT8":
		return TypeDouble, 22
	case "NUMERIC", "DECIMAL":
		return TypeDecimal, 0
	case "BOOL":
		return TypeTiny, 1
	case "TEXT", "VARCHAR", "BPCHAR", "NAME":
		return TypeVarString, 0
	case "BYTEA":
		return TypeBlob, 0
	case "DATE":
		return TypeDate, 10
	case "TIME", "TIMETZ":
		return TypeTime, 8
	case "TIMESTAMP", "TIMESTAMPTZ":
		return TypeDatetime, 19
	case "JSON", "JSONB":
		return TypeVarString, 0
	default:
		return TypeVarString, 0
	}
}
