package session

import (
	"crypto/rand"
	"fmt"

	"github.com/postmyrustache/gateway/internal/codec"
)

const (
	capClientLongPassword     uint32 = 0x00000001
	capClientConnectWithDB    uint32 = 0x00000008
	capClientProtocol41       uint32 = 0x00000200
	capClientSecureConnection uint32 = 0x00008000
	capClientPluginAuth       uint32 = 0x00080000

	serverCapabilities = capClientLongPassword | capClientConnectWithDB |
		capClientProtocol41 | capClientSecureConnection | capClientPluginAuth

	serverVersion     = "8.0.0-gateway"
	authPluginName    = "mysql_native_password"
	charsetUTF8MB4    = 45
	statusAutocommit  = 0x0002
)

// newScramble returns 20 random bytes with no embedded zero byte, since the
// scramble is transmitted as two null-terminated segments.
func newScramble() ([]byte, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating scramble: %w", err)
	}
	for i := range b {
		if b[i] == 0 {
			b[i] = 1
		}
	}
	return b, nil
}

// buildInitialHandshake encodes the Protocol::HandshakeV10 packet body per
// spec §4.2.1.
func buildInitialHandshake(connectionID uint32, scramble []byte) []byte {
	var buf []byte
	buf = append(buf, 10) // protocol version
	buf = codec.PutNullTerminatedString(buf, serverVersion)
	buf = codec.PutUint32(buf, connectionID)
	buf = append(buf, scramble[:8]...)
	buf = append(buf, 0) // filler

	buf = codec.PutUint16(buf, uint16(serverCapabilities))
	buf = append(buf, charsetUTF8MB4)
	buf = codec.PutUint16(buf, statusAutocommit)
	buf = codec.PutUint16(buf, uint16(serverCapabilities>>16))
	buf = append(buf, byte(len(scramble)+1)) // auth-plugin-data length
	buf = append(buf, make([]byte, 10)...)   // reserved

	buf = append(buf, scramble[8:]...)
	buf = append(buf, 0) // null terminator on scramble part 2
	buf = codec.PutNullTerminatedString(buf, authPluginName)
	return buf
}

// handshakeResponse is the subset of HandshakeResponse41 the gateway needs.
type handshakeResponse struct {
	clientFlags uint32
	username    string
	authData    []byte
	database    string
}

// parseHandshakeResponse parses a client's HandshakeResponse41 payload per
// the MySQL client/server protocol, adapted from the teacher's
// readHandshakeResponse (there used to extract a tenant id for relaying;
// here used to extract the credentials the gateway authenticates itself).
func parseHandshakeResponse(payload []byte) (*handshakeResponse, error) {
	if len(payload) < 32 {
		return nil, fmt.Errorf("handshake response too short: %d bytes", len(payload))
	}

	clientFlags, _, err := codec.ReadUint32(payload)
	if err != nil {
		return nil, err
	}
	pos := 32 // 4 (flags) + 4 (max packet) + 1 (charset) + 23 (reserved)

	username, remaining, err := codec.ReadNullTerminatedString(payload[pos:])
	if err != nil {
		return nil, fmt.Errorf("parsing username: %w", err)
	}
	pos = len(payload) - len(remaining)

	var authData []byte
	switch {
	case clientFlags&0x00200000 != 0, clientFlags&capClientSecureConnection != 0:
		if pos >= len(payload) {
			return nil, fmt.Errorf("handshake response truncated before auth length")
		}
		n := int(payload[pos])
		pos++
		if pos+n > len(payload) {
			return nil, fmt.Errorf("handshake response truncated in auth data")
		}
		authData = payload[pos : pos+n]
		pos += n
	default:
		a, remaining2, err := codec.ReadNullTerminatedString(payload[pos:])
		if err != nil {
			return nil, fmt.Errorf("parsing null-terminated auth data: %w", err)
		}
		authData = a
		pos = len(payload) - len(remaining2)
	}

	var database string
	if clientFlags&capClientConnectWithDB != 0 && pos < len(payload) {
		db, _, err := codec.ReadNullTerminatedString(payload[pos:])
		if err != nil {
			return nil, fmt.Errorf("parsing database: %w", err)
		}
		database = string(db)
	}

	return &handshakeResponse{
		clientFlags: clientFlags,
		username:    string(username),
		authData:    authData,
		database:    database,
	}, nil
}
