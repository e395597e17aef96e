// Package postgres implements every engine store contract — refresh
// tokens, reset tokens, login attempts, rate-limit hits — on a shared
// Postgres database via the pgx stdlib driver.
//
// Schema lives in embedded goose migrations; call RunMigrations on
// startup. Single-winner updates use conditional UPDATEs (revoked_at IS
// NULL, used_at IS NULL) checked by rows affected, so concurrent rotations
// and consumes resolve inside the database without advisory locks.
package postgres
