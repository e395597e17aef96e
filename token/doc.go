// Package token issues and verifies stateless access tokens: compact signed
// JSON envelopes (JWS, HS256) carrying the full identity, tenant, and role
// context so authorization never needs a server-side lookup.
//
// # Verification order
//
// Structure (three dot segments) → signature → expiry. The signature is
// checked before any payload field, including exp, is trusted. Each failure
// maps to its own sentinel: [ErrMalformed], [ErrSignature], [ErrExpired].
//
// # What this package must NOT do
//
//   - Persist tokens or cache verification results.
//   - Accept any signing algorithm other than the configured one.
//   - Hold the root secret — it receives an already-derived signing key.
package token
