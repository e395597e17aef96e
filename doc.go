// Package authcore provides the credential and token security engine behind
// the reading-tracker application: password hashing, stateless access
// tokens, rotating opaque refresh tokens, tenant secret encryption,
// brute-force lockout, role checks, and rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. The engine holds no mutable request state — every
// operation is a pure function of its inputs plus a persistence call.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy, and [MetricsSnapshot]. Each security concern lives in
// its own sub-package (password, token, refresh, reset, lockout, rate,
// role, secrets); storage backends live under store/.
//
// # What this package must NOT do
//
//   - Persist or log plaintext passwords, refresh tokens, or decrypted
//     secrets. Only one-way hashes and ciphertext are stored.
//   - Construct unparameterized queries: every untrusted value crossing the
//     persistence boundary is bound as a parameter.
//   - Cache access-token verification results. Every verification
//     recomputes the signature and rechecks expiry.
//   - Decide transport concerns: cookies, headers, and HTTP status mapping
//     belong to the routing layer.
package authcore
