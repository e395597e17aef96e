// Package reset manages single-use password reset tokens. A token is minted
// once, delivered out of band, and consumed exactly once: the store marks
// usedAt with a compare-and-set, so a second consume fails even before
// expiry.
package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dervish666/KidsReadingManager-sub001/internal"
)

const (
	// DefaultTTL bounds the reset window. Hours-scale.
	DefaultTTL = time.Hour
	// DefaultTokenBytes is the raw entropy of a minted token.
	DefaultTokenBytes = 32

	minTokenBytes = 24
)

var (
	// ErrInvalid indicates the presented token matches no record.
	ErrInvalid = errors.New("invalid reset token")
	// ErrExpired indicates the record is past its expiry.
	ErrExpired = errors.New("reset token expired")
	// ErrUsed indicates the record was already consumed.
	ErrUsed = errors.New("reset token already used")
	// ErrNotFound is returned by Store implementations for a missing hash.
	ErrNotFound = errors.New("reset token not found")
)

// Record is the stored shape of a reset token. Only the hash is persisted.
type Record struct {
	ID        string
	UserID    string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Issuance carries a freshly minted reset token and its stored record.
type Issuance struct {
	Token  string
	Record Record
}

// Store is the persistence contract for reset token records. MarkUsed must
// be conditional: it returns false when the record was already consumed.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	FindByHash(ctx context.Context, hash string) (*Record, error)
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
}

// Config holds reset manager tuning parameters.
type Config struct {
	TTL        time.Duration
	TokenBytes int
}

// Manager mints and consumes single-use reset tokens.
type Manager struct {
	config Config
	store  Store
}

// New validates the configuration and returns a Manager bound to the store.
func New(cfg Config, store Store) (*Manager, error) {
	if store == nil {
		return nil, errors.New("reset store required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("reset ttl must be positive")
	}
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = DefaultTokenBytes
	}
	if cfg.TokenBytes < minTokenBytes {
		return nil, fmt.Errorf("reset token bytes must be >= %d", minTokenBytes)
	}
	return &Manager{config: cfg, store: store}, nil
}

// Mint generates a random token for the user, persists its hash, and returns
// the plaintext exactly once.
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

// Verify checks the presented token without consuming it. Useful for a
// pre-flight check on the reset form before the user submits a new password.
func (m *Manager) Verify(ctx context.Context, presented string) (*Record, error) {
	rec, err := m.lookup(ctx, presented)
	if err != nil {
		return nil, err
	}
	if rec.UsedAt != nil {
		return nil, ErrUsed
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, ErrExpired
	}
	return rec, nil
}

// Consume validates the presented token and marks it used in one pass.
// UsedAt is set exactly once; a concurrent or repeated consume fails with
// ErrUsed even if the token has not expired.
func (m *Manager) Consume(ctx context.Context, presented string) (*Record, error) {
	rec, err := m.Verify(ctx, presented)
	if err != nil {
		return nil, err
	}

	ok, err := m.store.MarkUsed(ctx, rec.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUsed
	}
	return rec, nil
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
