// Package internal holds the primitive codec and secure randomness helpers
// shared by every engine package: base64/base64url/hex encoding, opaque
// token generation, one-way token hashing, and constant-time comparison.
//
// # What this package must NOT do
//
//   - Perform I/O other than reading crypto/rand.
//   - Be imported outside this module.
package internal
