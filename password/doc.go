// Package password implements salted, iterated password hashing with
// constant-time verification and a forward-compatible rehash signal.
//
// # Output format
//
// Hashes are encoded as a delimited string:
//
//	pbkdf2$<iterations>$<salt-b64>$<digest-b64>
//
// The iteration count is recorded in the hash itself so that values written
// with an older, lower work factor keep verifying while [Hasher.Verify]
// reports NeedsRehash, letting callers upgrade them on the next good login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy and
// persistence of the stored string belong to the caller.
//
// # What this package must NOT do
//
//   - Reject any plaintext input — empty and non-ASCII passwords hash fine.
//   - Log plaintext passwords or derived digests.
//   - Import any engine package other than internal.
package password
