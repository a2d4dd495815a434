package session

import "crypto/sha1" //nolint:gosec // mandated by the wire protocol itself

// NativePasswordHash implements MySQL's native-password challenge-response
// formula:
//
//	SHA1(password) XOR SHA1(scramble || SHA1(SHA1(password)))
//
// Adapted from the backend-auth helper the teacher uses when dialing a
// real MySQL server; here it runs in the other direction, verifying what a
// connecting client presents against the gateway's own configured
// credential.
func NativePasswordHash(password string, scramble []byte) []byte {
	if password == "" {
		return nil
	}
	h1 := sha1.Sum([]byte(password))   //nolint:gosec
	h2 := sha1.Sum(h1[:])              //nolint:gosec
	h := sha1.New()                    //nolint:gosec
	h.Write(scramble)
	h.Write(h2[:])
	h3 := h.Sum(nil)

	result := make([]byte, 20)
	for i := range result {
		result[i] = h1[i] ^ h3[i]
	}
	return result
}

// VerifyNativePassword reports whether response is the native-password
// auth value a client presenting password would produce for scramble.
// A configured empty password authenticates only an empty response, never
// matching an arbitrary attacker-supplied blob.
func VerifyNativePassword(password string, scramble, response []byte) bool {
	if password == "" {
		return len(response) == 0
	}
	expected := NativePasswordHash(password, scramble)
	if len(expected) != len(response) {
		return false
	}
	var diff byte
	for i := range expected {
		diff |= expected[i] ^ response[i]
	}
	return diff == 0
}
