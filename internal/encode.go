package internal

import (
	"encoding/base64"
	"encoding/hex"
)

// EncodeB64 returns standard base64 with padding. Used for password hash parts.
func EncodeB64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeB64 reverses EncodeB64.
func DecodeB64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeB64URL returns base64url without padding, safe for bearer headers
// and cookies. Used for opaque token material.
func EncodeB64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeB64URL reverses EncodeB64URL.
func DecodeB64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// EncodeHex returns lowercase hex. Used for stored token hashes and cipher output.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex reverses EncodeHex.
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
