// Package rate implements a generic sliding-window request limiter keyed by
// caller identity (or IP) and endpoint, used to throttle all traffic and
// especially authentication endpoints.
//
// # Window semantics
//
// Hits are persisted as individual timestamped rows and counted over a
// trailing window relative to "now". Stale rows are pruned opportunistically
// on a small random fraction of calls.
//
// # Failure policy
//
// The limiter degrades OPEN by default: if the hit store is unreachable the
// request proceeds unlimited and the degradation is logged. Deployments that
// need fail-closed behavior opt in via [Config.FailClosed].
package rate
