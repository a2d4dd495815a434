package session

import (
	"bytes"
	"net"
	"testing"

	"github.com/postmyrustache/gateway/internal/codec"
)

func TestNewScrambleNoZeroBytes(t *testing.T) {
	b, err := newScramble()
	if err != nil {
		t.Fatalf("newScramble: %v", err)
	}
	if len(b) != 20 {
		t.Fatalf("len = %d, want 20", len(b))
	}
	for i, c := range b {
		if c == 0 {
			t.Fatalf("byte %d is zero", i)
		}
	}
}

func TestBuildInitialHandshakeShape(t *testing.T) {
	scramble := bytes.Repeat([]byte{0x41}, 20)
	buf := buildInitialHandshake(7, scramble)

	if buf[0] != 10 {
		t.Fatalf("protocol version = %d, want 10", buf[0])
	}
	if !bytes.Contains(buf, []byte(serverVersion)) {
		t.Fatalf("missing server version string")
	}
	if !bytes.Contains(buf, []byte(authPluginName)) {
		t.Fatalf("missing auth plugin name")
	}
	// connection id (4 bytes LE) follows the null-terminated version string.
	idOffset := 1 + len(serverVersion) + 1
	gotID, _, err := codec.ReadUint32(buf[idOffset:])
	if err != nil {
		t.Fatalf("reading connection id: %v", err)
	}
	if gotID != 7 {
		t.Fatalf("connection id = %d, want 7", gotID)
	}
}

// buildHandshakeResponse41 encodes a minimal HandshakeResponse41 payload for
// the given username/authData/database, mirroring what a real MySQL client
// driver emits and what parseHandshakeResponse must accept.
func buildHandshakeResponse41(username string, authData []byte, database string) []byte {
	var buf []byte
	buf = codec.PutUint32(buf, capClientProtocol41|capClientSecureConnection|capClientConnectWithDB|capClientPluginAuth)
	buf = codec.PutUint32(buf, 1<<24) // max packet size
	buf = append(buf, 45)             // charset
	buf = append(buf, make([]byte, 23)...)
	buf = codec.PutNullTerminatedString(buf, username)
	buf = append(buf, byte(len(authData)))
	buf = append(buf, authData...)
	buf = codec.PutNullTerminatedString(buf, database)
	return buf
}

func TestParseHandshakeResponseRoundTrip(t *testing.T) {
	scramble := bytes.Repeat([]byte{0x11}, 20)
	authData := NativePasswordHash("s3cret", scramble)
	payload := buildHandshakeResponse41("app_user", authData, "appdb")

	resp, err := parseHandshakeResponse(payload)
	if err != nil {
		t.Fatalf("parseHandshakeResponse: %v", err)
	}
	if resp.username != "app_user" {
		t.Fatalf("username = %q, want app_user", resp.username)
	}
	if resp.database != "appdb" {
		t.Fatalf("database = %q, want appdb", resp.database)
	}
	if !bytes.Equal(resp.authData, authData) {
		t.Fatalf("authData mismatch")
	}
	if !VerifyNativePassword("s3cret", scramble, resp.authData) {
		t.Fatalf("round-tripped auth data failed to verify")
	}
}

func TestParseHandshakeResponseRejectsShortPayload(t *testing.T) {
	if _, err := parseHandshakeResponse([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short payload")
	}
}

// TestHandshakeRejectsBadPassword drives only the wire-level handshake leg
// (send handshake, read+verify response) over a net.Pipe, stopping short of
// backend acquisition so it needs no real PostgreSQL connection.
func TestHandshakeRejectsBadPassword(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	s := &Session{
		conn:         serverConn,
		reader:       codec.NewReader(serverConn),
		writer:       codec.NewWriter(serverConn),
		creds:        Credentials{Username: "gw", Password: "correct-horse"},
		connectionID: 42,
		peer:         "test",
	}

	done := make(chan error, 1)
	go func() {
		scramble, err := newScramble()
		if err != nil {
			done <- err
			return
		}
		s.scramble = scramble
		done <- s.writePacket(buildInitialHandshake(s.connectionID, scramble))
	}()

	clientReader := codec.NewReader(clientConn)
	hsPayload, err := clientReader.ReadPacket()
	if err != nil {
		t.Fatalf("client reading handshake: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server writing handshake: %v", err)
	}

	// Recover the scramble the server generated to build a deliberately
	// wrong auth response.
	idOffset := 1 + len(serverVersion) + 1
	scramblePart1 := hsPayload[idOffset+4 : idOffset+4+8]
	_ = scramblePart1

	wrongAuth := NativePasswordHash("not-the-password", s.scramble)
	resp := buildHandshakeResponse41("gw", wrongAuth, "")

	clientWriter := codec.NewWriter(clientConn)
	writeDone := make(chan error, 1)
	go func() { writeDone <- clientWriter.WritePacket(resp) }()

	payload, err := s.reader.ReadPacket()
	if err != nil {
		t.Fatalf("server reading response: %v", err)
	}
	if err := <-writeDone; err != nil {
		t.Fatalf("client writing response: %v", err)
	}

	parsed, err := parseHandshakeResponse(payload)
	if err != nil {
		t.Fatalf("parseHandshakeResponse: %v", err)
	}
	if VerifyNativePassword(s.creds.Password, s.scramble, parsed.authData) {
		t.Fatalf("expected verification to fail for wrong password")
	}
}
