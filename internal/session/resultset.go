package session

import (
	"github.com/postmyrustache/gateway/internal/codec"
	"github.com/postmyrustache/gateway/internal/executor"
)

const (
	okPacketHeader  byte = 0x00
	eofPacketHeader byte = 0xFE
	errPacketHeader byte = 0xFF
)

// writeOK emits an OK_Packet per spec §4.2.4's no-rows case.
func (s *Session) writeOK(affectedRows, lastInsertID uint64) error {
	var buf []byte
	buf = append(buf, okPacketHeader)
	buf = codec.PutLengthEncodedInt(buf, affectedRows)
	buf = codec.PutLengthEncodedInt(buf, lastInsertID)
	buf = codec.PutUint16(buf, statusAutocommit)
	buf = codec.PutUint16(buf, 0) // warnings
	return s.writePacket(buf)
}

func (s *Session) writeEOF() error {
	var buf []byte
	buf = append(buf, eofPacketHeader)
	buf = codec.PutUint16(buf, 0) // warnings
	buf = codec.PutUint16(buf, statusAutocommit)
	return s.writePacket(buf)
}

// writeErr emits an ERR_Packet per spec §4.2.5.
func (s *Session) writeErr(code uint16, sqlState, message string) error {
	var buf []byte
	buf = append(buf, errPacketHeader)
	buf = codec.PutUint16(buf, code)
	buf = append(buf, '#')
	state := sqlState
	for len(state) < 5 {
		state += " "
	}
	buf = append(buf, state[:5]...)
	buf = append(buf, message...)
	return s.writePacket(buf)
}

// writeColumnDef emits a single column-definition packet.
func (s *Session) writeColumnDef(col executor.Column, schema string) error {
	var buf []byte
	buf = codec.PutLengthEncodedString(buf, []byte("def"))
	buf = codec.PutLengthEncodedString(buf, []byte(schema))
	buf = codec.PutLengthEncodedString(buf, []byte(""))  // table
	buf = codec.PutLengthEncodedString(buf, []byte(""))  // org_table
	buf = codec.PutLengthEncodedString(buf, []byte(col.Name))
	buf = codec.PutLengthEncodedString(buf, []byte(col.Name)) // org_name
	buf = codec.PutLengthEncodedInt(buf, 0x0C)                // length of fixed fields
	buf = codec.PutUint16(buf, charsetUTF8MB4)
	buf = codec.PutUint32(buf, col.Length)
	buf = append(buf, byte(col.Type))
	buf = codec.PutUint16(buf, col.Flags)
	buf = append(buf, col.Decimals)
	buf = codec.PutUint16(buf, 0) // filler
	return s.writePacket(buf)
}

// writeRow emits a single text-protocol row, NULL encoded as 0xFB and every
// other value as a length-encoded string of its textual form.
func (s *Session) writeRow(values []*string) error {
	var buf []byte
	for _, v := range values {
		if v == nil {
			buf = append(buf, codec.NullLenEnc)
			continue
		}
		buf = codec.PutLengthEncodedString(buf, []byte(*v))
	}
	return s.writePacket(buf)
}

// writeResultSet emits the full column-count + column-defs + EOF + rows +
// EOF sequence for a query-mode result, or a bare OK packet if the
// executor produced no result set at all for a command-mode statement.
func (s *Session) writeResultSet(res *executor.Result) error {
	if res.Columns == nil {
		return s.writeOK(res.AffectedRows, res.LastInsertID)
	}

	if err := s.writePacket(codec.PutLengthEncodedInt(nil, uint64(len(res.Columns)))); err != nil {
		return err
	}
	for _, col := range res.Columns {
		if err := s.writeColumnDef(col, s.currentDB); err != nil {
			return err
		}
	}
	if err := s.writeEOF(); err != nil {
		return err
	}
	for _, row := range res.Rows {
		if err := s.writeRow(row); err != nil {
			return err
		}
	}
	return s.writeEOF()
}
