package codec

import (
	"bytes"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		bytes.Repeat([]byte{0xAB}, 300),
		bytes.Repeat([]byte{0x5A}, MaxPayloadLen), // exactly one full packet, needs a trailing empty one
	}

	for _, payload := range cases {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.WritePacket(payload); err != nil {
			t.Fatalf("WritePacket: %v", err)
		}

		r := NewReader(&buf)
		got, err := r.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(payload))
		}
	}
}

func TestPacketSequenceIncrementsPerEmission(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.SetSeq(5)

	for i := 0; i < 3; i++ {
		if err := w.WritePacket([]byte("x")); err != nil {
			t.Fatalf("WritePacket: %v", err)
		}
	}

	r := NewReader(&buf)
	for i, want := range []byte{5, 6, 7} {
		if _, err := r.ReadPacket(); err != nil {
			t.Fatalf("ReadPacket %d: %v", i, err)
		}
		if r.Seq() != want {
			t.Fatalf("packet %d: seq = %d, want %d", i, r.Seq(), want)
		}
	}
}

func TestReadPacketOversizeLength(t *testing.T) {
	// A header declaring length 0xFFFFFF, followed by the zero-length packet
	// that terminates a maximal frame, must be accepted as one payload;
	// anything larger is impossible to express in 24 bits so this just
	// exercises the boundary.
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0x00})
	buf.Write(bytes.Repeat([]byte{0}, MaxPayloadLen))
	// terminating zero-length packet
	buf.Write([]byte{0x00, 0x00, 0x00, 0x01})

	r := NewReader(&buf)
	got, err := r.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if len(got) != MaxPayloadLen {
		t.Fatalf("got %d bytes, want %d", len(got), MaxPayloadLen)
	}
}

func TestLengthEncodedIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 250, 251, 65535, 65536, 16777215, 16777216, 1 << 40}
	for _, v := range values {
		buf := PutLengthEncodedInt(nil, v)
		got, isNull, rest, err := ReadLengthEncodedInt(buf)
		if err != nil {
			t.Fatalf("ReadLengthEncodedInt(%d): %v", v, err)
		}
		if isNull {
			t.Fatalf("ReadLengthEncodedInt(%d): unexpected null", v)
		}
		if got != v {
			t.Fatalf("ReadLengthEncodedInt(%d): got %d", v, got)
		}
		if len(rest) != 0 {
			t.Fatalf("ReadLengthEncodedInt(%d): leftover bytes %v", v, rest)
		}
	}
}

func TestLengthEncodedIntNull(t *testing.T) {
	_, isNull, rest, err := ReadLengthEncodedInt([]byte{NullLenEnc, 0x99})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isNull {
		t.Fatalf("expected null")
	}
	if !bytes.Equal(rest, []byte{0x99}) {
		t.Fatalf("rest = %v", rest)
	}
}

func TestLengthEncodedStringRoundTrip(t *testing.T) {
	buf := PutLengthEncodedString(nil, []byte("hello world"))
	got, isNull, rest, err := ReadLengthEncodedString(buf)
	if err != nil {
		t.Fatalf("ReadLengthEncodedString: %v", err)
	}
	if isNull {
		t.Fatalf("unexpected null")
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover bytes: %v", rest)
	}
}

func TestNullTerminatedStringRoundTrip(t *testing.T) {
	buf := PutNullTerminatedString(nil, "admin")
	buf = append(buf, 0xAA) // trailing byte after the terminator
	got, rest, err := ReadNullTerminatedString(buf)
	if err != nil {
		t.Fatalf("ReadNullTerminatedString: %v", err)
	}
	if string(got) != "admin" {
		t.Fatalf("got %q", got)
	}
	if !bytes.Equal(rest, []byte{0xAA}) {
		t.Fatalf("rest = %v", rest)
	}
}
