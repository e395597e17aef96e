package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dervish666/KidsReadingManager-sub001/internal"
)

const (
	// DefaultTTL is the refresh token lifetime. Days-scale, unlike the
	// minutes-scale access token.
	DefaultTTL = 30 * 24 * time.Hour
	// DefaultTokenBytes is the raw entropy of a minted token.
	DefaultTokenBytes = 48

	minTokenBytes = 32
)

var (
	// ErrInvalid indicates the presented token matches no record. The message
	// is identical for "never existed" and "wrong token" to block enumeration.
	ErrInvalid = errors.New("invalid refresh token")
	// ErrReuse indicates the presented token matched an already-revoked
	// record. Reuse means either a rotation race or a stolen token; either
	// way the caller must fail explicitly, never retry past it.
	ErrReuse = errors.New("refresh token reuse detected")
	// ErrExpired indicates the record exists but is past its expiry.
	ErrExpired = errors.New("refresh token expired")
	// ErrNotFound is returned by Store implementations for a missing hash.
	ErrNotFound = errors.New("refresh token not found")
	// ErrAlreadyRevoked is returned by Store.Revoke when the record was
	// revoked concurrently. The rotation loser surfaces this as ErrReuse.
	ErrAlreadyRevoked = errors.New("refresh token already revoked")
)

// Record is the stored shape of a refresh token. The plaintext token is
// never persisted — only its one-way hash.
type Record struct {
	ID        string
	UserID    string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the record has been explicitly revoked.
func (r *Record) Revoked() bool {
	return r.RevokedAt != nil
}

// Expired reports whether the record is past its expiry at the given time.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Active reports whether the record is neither revoked nor expired.
func (r *Record) Active(now time.Time) bool {
	return !r.Revoked() && !r.Expired(now)
}

// Issuance carries a freshly minted token. Token is the plaintext handed to
// the client exactly once; Record holds what the store persisted.
type Issuance struct {
	Token  string
	Record Record
}

// Store is the persistence contract for refresh token records.
//
// Revoke must be conditional: it succeeds only if the record is not yet
// revoked and returns ErrAlreadyRevoked otherwise, so that two concurrent
// rotations of the same token produce exactly one winner.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	FindByHash(ctx context.Context, hash string) (*Record, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

// Config holds refresh manager tuning parameters.
type Config struct {
	TTL        time.Duration
	TokenBytes int
}

// Manager mints, verifies, rotates, and revokes opaque refresh tokens.
type Manager struct {
	config Config
	store  Store
}

// New validates the configuration and returns a Manager bound to the store.
func New(cfg Config, store Store) (*Manager, error) {
	if store == nil {
		return nil, errors.New("refresh store required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("refresh ttl must be positive")
	}
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = DefaultTokenBytes
	}
	if cfg.TokenBytes < minTokenBytes {
		return nil, fmt.Errorf("refresh token bytes must be >= %d", minTokenBytes)
	}
	return &Manager{config: cfg, store: store}, nil
}

// Mint generates a cryptographically random opaque token for the user,
// persists its hash, and returns the plaintext exactly once.
func (m *Manager) Mint(ctx context.Context, userID string) (*Issuance, error) {
	if userID == "" {
		return nil, errors.New("user id required")
	}

	tok, err := internal.NewOpaqueToken(m.config.TokenBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: internal.HashToken(tok),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.config.TTL),
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	return &Issuance{Token: tok, Record: rec}, nil
}

// Verify is a pure hash-and-compare with no side effects: it checks the
// presented plaintext against a stored hash without consuming anything.
func (m *Manager) Verify(token, storedHash string) bool {
	return internal.ConstantTimeEquals(internal.HashToken(token), storedHash)
}

// Rotate exchanges a presented token for a fresh one. The old record is
// revoked before the new one is inserted, so a crash between the two steps
// leaves the session revoked (forcing re-login) rather than two live tokens.
// Reuse of a revoked or expired token is rejected outright — no grace period.
func (m *Manager) Rotate(ctx context.Context, presented string) (*Issuance, error) {
	rec, err := m.lookup(ctx, presented)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if rec.Revoked() {
		return nil, ErrReuse
	}
	if rec.Expired(now) {
		return nil, ErrExpired
	}

	// Revoke first. A concurrent rotation loser sees ErrAlreadyRevoked here;
	// that is a correctness signal (possible replay), not a retryable fault.
	if err := m.store.Revoke(ctx, rec.ID, now); err != nil {
		if errors.Is(err, ErrAlreadyRevoked) {
			return nil, ErrReuse
		}
		return nil, err
	}

	return m.Mint(ctx, rec.UserID)
}

// Revoke invalidates the record matching the presented token (logout).
// Already-revoked tokens revoke idempotently.
func (m *Manager) Revoke(ctx context.Context, presented string) error {
	rec, err := m.lookup(ctx, presented)
	if err != nil {
		return err
	}
	if rec.Revoked() {
		return nil
	}
	if err := m.store.Revoke(ctx, rec.ID, time.Now()); err != nil && !errors.Is(err, ErrAlreadyRevoked) {
		return err
	}
	return nil
}

// RevokeAllForUser invalidates every active token for the user. Used on
// password change and logout-everywhere.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id required")
	}
	return m.store.RevokeAllForUser(ctx, userID, time.Now())
}

func (m *Manager) lookup(ctx context.Context, presented string) (*Record, error) {
	if presented == "" {
		return nil, ErrInvalid
	}
	rec, err := m.store.FindByHash(ctx, internal.HashToken(presented))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalid
		}
		return nil, err
	}
	return rec, nil
}
