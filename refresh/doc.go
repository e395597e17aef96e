// Package refresh manages long-lived opaque refresh tokens: minting,
// storage-side hashing, single-use rotation, and revocation.
//
// # Rotation contract
//
// Rotation is revoke-then-insert, in that order. If the process dies between
// the two writes the old token is already revoked — the session is forced to
// re-login, which is safe; the reverse order could leave two valid tokens
// live, which is not. Concurrent rotations of the same token race by design:
// the store's conditional Revoke admits exactly one winner and the loser
// fails with reuse detection.
//
// # What this package must NOT do
//
//   - Persist or log a plaintext token — only SHA-256 hashes reach the store.
//   - Grant any grace period to a revoked or expired token.
package refresh
