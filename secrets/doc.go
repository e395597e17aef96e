// Package secrets encrypts tenant-held third-party credentials at rest with
// AES-256-GCM under a key derived from the deployment root secret.
//
// # Stored format
//
//	<iv-hex>:<ct-hex>
//
// A stored value without the ":" delimiter is a legacy plaintext written
// before encryption at rest existed; [Cipher.Decrypt] returns it unchanged.
// The variant is an explicit tag on [Stored], not a per-call-site heuristic.
//
// # What this package must NOT do
//
//   - Reuse an IV: every Encrypt call draws a fresh random nonce.
//   - Distinguish "wrong key" from "corrupted data" in its error surface.
//   - Fall back to a weak key when the root secret is missing.
package secrets
