package codec

import "fmt"

// PutUint16 / PutUint32 / PutUint64 append little-endian fixed-width
// integers, the representation used throughout the handshake and OK/ERR
// packets.

func PutUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func PutUint24(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16))
}

func PutUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func PutUint64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// ReadUint16 / ReadUint32 decode little-endian fixed-width integers,
// returning the value and the bytes remaining after it.
func ReadUint16(buf []byte) (uint16, []byte, error) {
	if len(buf) < 2 {
		return 0, nil, fmt.Errorf("short buffer for uint16")
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, buf[2:], nil
}

func ReadUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, fmt.Errorf("short buffer for uint32")
	}
	v := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	return v, buf[4:], nil
}

// NullLenEnc is the sentinel leading byte marking SQL NULL in a length-encoded
// row value.
const NullLenEnc = 0xFB

// PutLengthEncodedInt appends v as a length-encoded integer.
func PutLengthEncodedInt(buf []byte, v uint64) []byte {
	switch {
	case v < 0xFB:
		return append(buf, byte(v))
	case v <= 0xFFFF:
		buf = append(buf, 0xFC)
		return PutUint16(buf, uint16(v))
	case v <= 0xFFFFFF:
		buf = append(buf, 0xFD)
		return PutUint24(buf, uint32(v))
	default:
		buf = append(buf, 0xFE)
		return PutUint64(buf, v)
	}
}

// PutLengthEncodedString appends v as a length-encoded length followed by
// its raw bytes.
func PutLengthEncodedString(buf []byte, v []byte) []byte {
	buf = PutLengthEncodedInt(buf, uint64(len(v)))
	return append(buf, v...)
}

// PutNullTerminatedString appends v followed by a zero byte.
func PutNullTerminatedString(buf []byte, v string) []byte {
	return append(append(buf, v...), 0)
}

// ReadLengthEncodedInt reads a length-encoded integer from the front of
// buf, returning the value, whether it denoted SQL NULL, and the remaining
// bytes.
func ReadLengthEncodedInt(buf []byte) (value uint64, isNull bool, rest []byte, err error) {
	if len(buf) == 0 {
		return 0, false, nil, fmt.Errorf("empty buffer for length-encoded int")
	}
	switch lead := buf[0]; {
	case lead < 0xFB:
		return uint64(lead), false, buf[1:], nil
	case lead == NullLenEnc:
		return 0, true, buf[1:], nil
	case lead == 0xFC:
		if len(buf) < 3 {
			return 0, false, nil, fmt.Errorf("short buffer for 2-byte length-encoded int")
		}
		return uint64(buf[1]) | uint64(buf[2])<<8, false, buf[3:], nil
	case lead == 0xFD:
		if len(buf) < 4 {
			return 0, false, nil, fmt.Errorf("short buffer for 3-byte length-encoded int")
		}
		return uint64(buf[1]) | uint64(buf[2])<<8 | uint64(buf[3])<<16, false, buf[4:], nil
	case lead == 0xFE:
		if len(buf) < 9 {
			return 0, false, nil, fmt.Errorf("short buffer for 8-byte length-encoded int")
		}
		v := uint64(buf[1]) | uint64(buf[2])<<8 | uint64(buf[3])<<16 | uint64(buf[4])<<24 |
			uint64(buf[5])<<32 | uint64(buf[6])<<40 | uint64(buf[7])<<48 | uint64(buf[8])<<56
		return v, false, buf[9:], nil
	default:
		return 0, false, nil, fmt.Errorf("invalid length-encoded int lead byte 0x%x", lead)
	}
}

// ReadLengthEncodedString reads a length-encoded string from the front of
// buf, returning its bytes, whether it was SQL NULL, and the remaining
// bytes.
func ReadLengthEncodedString(buf []byte) (value []byte, isNull bool, rest []byte, err error) {
	n, isNull, rest, err := ReadLengthEncodedInt(buf)
	if err != nil {
		return nil, false, nil, err
	}
	if isNull {
		return nil, true, rest, nil
	}
	if uint64(len(rest)) < n {
		return nil, false, nil, fmt.Errorf("short buffer for length-encoded string of %d bytes", n)
	}
	return rest[:n], false, rest[n:], nil
}

// ReadNullTerminatedString reads bytes up to (not including) the first zero
// byte, returning the string and the remaining bytes after the terminator.
func ReadNullTerminatedString(buf []byte) (value []byte, rest []byte, err error) {
	for i, b := range buf {
		if b == 0 {
			return buf[:i], buf[i+1:], nil
		}
	}
	return nil, nil, fmt.Errorf("missing null terminator")
}
