package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dervish666/KidsReadingManager-sub001/lockout"
	"github.com/dervish666/KidsReadingManager-sub001/refresh"
	"github.com/dervish666/KidsReadingManager-sub001/reset"
)

// ErrUnavailable wraps any database failure.
var ErrUnavailable = errors.New("postgres unavailable")

// Store implements the refresh, reset, lockout, and rate store contracts on
// a shared *sql.DB. Single-winner updates (refresh revocation, reset
// consumption) are conditional UPDATEs checked by rows affected, so two
// concurrent writers resolve inside the database.
type Store struct {
	db *sql.DB
}

// New creates a Store over an open database handle.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database handle required")
	}
	return &Store{db: db}, nil
}

func wrap(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

/*
====================================
REFRESH TOKEN STORE
====================================
*/

// Insert persists a refresh record.
func (s *Store) Insert(ctx context.Context, rec refresh.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.UserID, rec.TokenHash, rec.IssuedAt, rec.ExpiresAt,
	)
	if err != nil {
		return wrap(err)
	}
	return nil
}

// FindByHash loads the record stored under a token hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (*refresh.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, issued_at, expires_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1`,
		hash,
	)

	rec := refresh.Record{TokenHash: hash}
	var revokedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.UserID, &rec.IssuedAt, &rec.ExpiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, refresh.ErrNotFound
	}
	if err != nil {
		return nil, wrap(err)
	}
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	return &rec, nil
}

// Revoke marks the record revoked exactly once. The condition on
// revoked_at IS NULL makes the database pick the single winner; the loser
// gets refresh.ErrAlreadyRevoked.
func (s *Store) Revoke(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL`,
		id, at,
	)
	if err != nil {
		return wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrap(err)
	}
	if affected == 1 {
		return nil
	}

	// Zero rows: either the record never existed or someone beat us to it.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return wrap(err)
	}
	if !exists {
		return refresh.ErrNotFound
	}
	return refresh.ErrAlreadyRevoked
}

// RevokeAllForUser revokes every still-active record for a user.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, at,
	)
	if err != nil {
		return wrap(err)
	}
	return nil
}

/*
====================================
PASSWORD RESET TOKEN STORE
====================================
*/

// ResetTokens returns the reset-token view of this store.
func (s *Store) ResetTokens() reset.Store {
	return resetTokens{s}
}

// resetTokens adapts Store to the reset.Store contract; the method names
// collide with the refresh ones otherwise.
type resetTokens struct {
	s *Store
}

func (r resetTokens) Insert(ctx context.Context, rec reset.Record) error {
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.UserID, rec.TokenHash, rec.IssuedAt, rec.ExpiresAt,
	)
	if err != nil {
		return wrap(err)
	}
	return nil
}

func (r resetTokens) FindByHash(ctx context.Context, hash string) (*reset.Record, error) {
	row := r.s.db.QueryRowContext(ctx, `
		SELECT id, user_id, issued_at, expires_at, used_at
		FROM password_reset_tokens
		WHERE token_hash = $1`,
		hash,
	)

	rec := reset.Record{TokenHash: hash}
	var usedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.UserID, &rec.IssuedAt, &rec.ExpiresAt, &usedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reset.ErrNotFound
	}
	if err != nil {
		return nil, wrap(err)
	}
	if usedAt.Valid {
		rec.UsedAt = &usedAt.Time
	}
	return &rec, nil
}

// MarkUsed sets used_at exactly once. Returns false when another consumer
// already won.
func (r resetTokens) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.s.db.ExecContext(ctx, `
		UPDATE password_reset_tokens SET used_at = $2
		WHERE id = $1 AND used_at IS NULL`,
		id, at,
	)
	if err != nil {
		return false, wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrap(err)
	}
	if affected == 1 {
		return true, nil
	}

	var exists bool
	err = r.s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM password_reset_tokens WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, wrap(err)
	}
	if !exists {
		return false, reset.ErrNotFound
	}
	return false, nil
}

/*
====================================
LOGIN ATTEMPT STORE
====================================
*/

// RecordAttempt appends one attempt row. Successes land in the audit trail
// too; only failures are counted toward lockout.
func (s *Store) RecordAttempt(ctx context.Context, a lockout.Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_attempts (id, email, ip_address, user_agent, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), a.Email, a.IPAddress, a.UserAgent, a.Success, a.CreatedAt,
	)
	if err != nil {
		return wrap(err)
	}
	return nil
}

// CountFailures counts failed attempts for an email newer than since.
func (s *Store) CountFailures(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND NOT success AND created_at >= $2`,
		email, since,
	).Scan(&count)
	if err != nil {
		return 0, wrap(err)
	}
	return count, nil
}

// ClearFailures drops failure rows for an email. Successful attempts stay:
// the audit trail is append-only for those.
func (s *Store) ClearFailures(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM login_attempts WHERE email = $1 AND NOT success`,
		email,
	)
	if err != nil {
		return wrap(err)
	}
	return nil
}

/*
====================================
RATE LIMIT HIT STORE
====================================
*/

// RecordHit appends one timestamped hit row for (key, endpoint).
func (s *Store) RecordHit(ctx context.Context, key, endpoint string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rate_limit_hits (id, key, endpoint, created_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), key, endpoint, at,
	)
	if err != nil {
		return wrap(err)
	}
	return nil
}

// CountHits counts hits for (key, endpoint) newer than since.
func (s *Store) CountHits(ctx context.Context, key, endpoint string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rate_limit_hits
		WHERE key = $1 AND endpoint = $2 AND created_at >= $3`,
		key, endpoint, since,
	).Scan(&count)
	if err != nil {
		return 0, wrap(err)
	}
	return count, nil
}

// PruneHits deletes hit rows older than before, across all keys.
func (s *Store) PruneHits(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM rate_limit_hits WHERE created_at < $1`,
		before,
	)
	if err != nil {
		return wrap(err)
	}
	return nil
}
