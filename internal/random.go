package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"io"
)

// RandomBytes fills and returns a fresh buffer of n cryptographically
// random bytes. Every salt, IV, and opaque token in the engine goes
// through this single chokepoint.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// NewOpaqueToken returns a base64url-encoded random token of rawSize bytes.
// The encoded form is plain ASCII and never stored; callers persist
// HashToken(token) instead.
func NewOpaqueToken(rawSize int) (string, error) {
	raw, err := RandomBytes(rawSize)
	if err != nil {
		return "", err
	}
	return EncodeB64URL(raw), nil
}

// HashToken returns the hex SHA-256 of an opaque token's encoded form.
// One-way: a leaked store row cannot be replayed as a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return EncodeHex(sum[:])
}

// ConstantTimeEquals compares two strings without short-circuiting on the
// first differing byte. Length mismatch still returns false immediately;
// only content comparison needs to be constant time.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
