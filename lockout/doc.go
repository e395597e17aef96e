// Package lockout implements the brute-force guard: a sliding-window count
// of failed login attempts per identity driving temporary account lockout.
//
// # Window semantics
//
// Failures are counted over a trailing window relative to "now", not fixed
// calendar buckets. Reaching the threshold locks the identity until enough
// failures age out of the window or a successful login clears them.
//
// # What this package must NOT do
//
//   - Treat unknown emails differently from real ones — both are recorded
//     identically to prevent account enumeration.
//   - Mutate the attempt log: records are appended, counted, and eventually
//     pruned by retention cleanup, never updated.
package lockout
