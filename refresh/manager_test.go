package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memStore is a minimal in-memory Store used to exercise Manager logic
// without a backend. Revoke is conditional, matching the Store contract.
type memStore struct {
	mu   sync.Mutex
	recs map[string]*Record // by ID
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]*Record{}}
}

func (s *memStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.recs[rec.ID] = &cp
	return nil
}

func (s *memStore) FindByHash(_ context.Context, hash string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.TokenHash == hash {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	if rec.RevokedAt != nil {
		return ErrAlreadyRevoked
	}
	rec.RevokedAt = &at
	return nil
}

func (s *memStore) RevokeAllForUser(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.UserID == userID && rec.RevokedAt == nil {
			t := at
			rec.RevokedAt = &t
		}
	}
	return nil
}

func newManager(t *testing.T, cfg Config) (*Manager, *memStore) {
	t.Helper()
	store := newMemStore()
	m, err := New(cfg, store)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return m, store
}

func TestMintReturnsPlaintextOnceAndStoresHash(t *testing.T) {
	m, store := newManager(t, Config{})
	ctx := context.Background()

	iss, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	if iss.Token == "" {
		t.Fatal("expected plaintext token")
	}
	if iss.Record.TokenHash == iss.Token {
		t.Fatal("plaintext must never equal the stored hash")
	}
	if !m.Verify(iss.Token, iss.Record.TokenHash) {
		t.Fatal("minted token must verify against its own hash")
	}
	if m.Verify("some-other-token", iss.Record.TokenHash) {
		t.Fatal("wrong token must not verify")
	}

	stored, err := store.FindByHash(ctx, iss.Record.TokenHash)
	if err != nil {
		t.Fatalf("FindByHash error: %v", err)
	}
	if stored.UserID != "user-1" || stored.Revoked() {
		t.Fatalf("unexpected stored record: %+v", stored)
	}
	if !stored.ExpiresAt.After(time.Now().Add(24 * time.Hour)) {
		t.Fatal("expected days-scale expiry")
	}
}

func TestRotateIssuesNewAndRevokesOld(t *testing.T) {
	m, _ := newManager(t, Config{})
	ctx := context.Background()

	first, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}

	second, err := m.Rotate(ctx, first.Token)
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	if second.Token == first.Token {
		t.Fatal("rotation must mint a different token")
	}
	if second.Record.UserID != "user-1" {
		t.Fatalf("rotated record belongs to %q", second.Record.UserID)
	}

	// The old token is consumed: rotating it again is reuse.
	if _, err := m.Rotate(ctx, first.Token); !errors.Is(err, ErrReuse) {
		t.Fatalf("expected ErrReuse on second rotation, got %v", err)
	}

	// The new token still rotates fine.
	if _, err := m.Rotate(ctx, second.Token); err != nil {
		t.Fatalf("Rotate(new) error: %v", err)
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	m, _ := newManager(t, Config{})
	ctx := context.Background()

	iss, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Rotate(ctx, iss.Token)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrReuse):
		default:
			t.Fatalf("unexpected rotation error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one rotation winner, got %d", wins)
	}
}

func TestRotateExpired(t *testing.T) {
	m, store := newManager(t, Config{})
	ctx := context.Background()

	iss, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}

	// Age the record past its expiry in place.
	store.mu.Lock()
	store.recs[iss.Record.ID].ExpiresAt = time.Now().Add(-time.Minute)
	store.mu.Unlock()

	if _, err := m.Rotate(ctx, iss.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRotateUnknownToken(t *testing.T) {
	m, _ := newManager(t, Config{})
	if _, err := m.Rotate(context.Background(), "never-issued"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := m.Rotate(context.Background(), ""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty token, got %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	m, _ := newManager(t, Config{})
	ctx := context.Background()

	iss, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	if err := m.Revoke(ctx, iss.Token); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if err := m.Revoke(ctx, iss.Token); err != nil {
		t.Fatalf("second Revoke should be idempotent, got %v", err)
	}
	if _, err := m.Rotate(ctx, iss.Token); !errors.Is(err, ErrReuse) {
		t.Fatalf("expected ErrReuse after revoke, got %v", err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	m, _ := newManager(t, Config{})
	ctx := context.Background()

	a, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	b, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	other, err := m.Mint(ctx, "user-2")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}

	if err := m.RevokeAllForUser(ctx, "user-1"); err != nil {
		t.Fatalf("RevokeAllForUser error: %v", err)
	}

	if _, err := m.Rotate(ctx, a.Token); !errors.Is(err, ErrReuse) {
		t.Fatalf("expected ErrReuse for first token, got %v", err)
	}
	if _, err := m.Rotate(ctx, b.Token); !errors.Is(err, ErrReuse) {
		t.Fatalf("expected ErrReuse for second token, got %v", err)
	}
	if _, err := m.Rotate(ctx, other.Token); err != nil {
		t.Fatalf("other user's token must survive, got %v", err)
	}
}

func TestNewConfigValidation(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := New(Config{TokenBytes: 8}, newMemStore()); err == nil {
		t.Fatal("expected error for weak token size")
	}
	if _, err := New(Config{TTL: -time.Hour}, newMemStore()); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}
