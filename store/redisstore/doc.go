// Package redisstore implements every engine store contract — refresh
// tokens, reset tokens, login attempts, rate-limit hits — on a single Redis
// backend.
//
// # Key layout
//
//	<prefix>rt:h:<hash>     refresh record (hash keyed by token hash)
//	<prefix>rt:id:<id>      refresh ID → token hash index
//	<prefix>rt:u:<user>     per-user refresh record IDs (revoke-all sweeps)
//	<prefix>prt:h:<hash>    reset record
//	<prefix>prt:id:<id>     reset ID → token hash index
//	<prefix>laf:<email>     failure window (sorted set, score = unix nanos)
//	<prefix>la:audit        capped login-attempt audit stream
//	<prefix>rl:<key>:<ep>   rate-limit hit window (sorted set)
//
// Single-winner updates (refresh revocation, reset consumption) go through
// one Lua compare-and-set script so concurrent rotations and consumes
// resolve atomically on the server.
package redisstore
