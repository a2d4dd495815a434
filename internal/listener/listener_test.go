package listener

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/postmyrustache/gateway/internal/executor"
	"github.com/postmyrustache/gateway/internal/metrics"
	"github.com/postmyrustache/gateway/internal/session"
)

func unreachableExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	dsn := "host=127.0.0.1 port=1 dbname=postgres user=postgres password=x sslmode=disable"
	exec, err := executor.New(dsn, "postgres", 1, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("executor.New: %v", err)
	}
	return exec
}

// TestListenSendsInitialHandshake verifies an accepted connection gets a
// MySQL handshake packet without needing a real backend: the session
// hasn't tried to acquire one yet at that point.
func TestListenSendsInitialHandshake(t *testing.T) {
	l := New(unreachableExecutor(t), metrics.New(), session.Credentials{Username: "gw", Password: "secret"})
	if err := l.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Stop()

	conn, err := net.Dial("tcp", l.ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	header := make([]byte, 4)
	if _, err := r.Read(header); err != nil {
		t.Fatalf("reading handshake header: %v", err)
	}
	// Packet length is a 3-byte little-endian int; any nonzero length means
	// the session wrote something before we close the raw socket underneath
	// it.
	length := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
	if length == 0 {
		t.Fatalf("expected nonzero handshake packet length, got 0")
	}
}

func TestStopClosesListenerAndWaitsForSessions(t *testing.T) {
	l := New(unreachableExecutor(t), metrics.New(), session.Credentials{Username: "gw", Password: "secret"})
	if err := l.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := l.ln.Addr().String()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return in time")
	}

	if _, err := net.Dial("tcp", addr); err == nil {
		t.Fatal("expected dial to closed listener to fail")
	}
}

func TestConnectionIDsIncrementPerConnection(t *testing.T) {
	l := New(unreachableExecutor(t), metrics.New(), session.Credentials{Username: "gw", Password: "secret"})
	if err := l.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Stop()

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", l.ln.Addr().String())
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		conn.Close()
	}

	time.Sleep(100 * time.Millisecond)
	if got := l.nextConnID.Load(); got < 3 {
		t.Fatalf("nextConnID = %d, want at least 3", got)
	}
}
