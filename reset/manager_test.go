package reset

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu   sync.Mutex
	recs map[string]*Record
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

func (s *memStore) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return false, ErrNotFound
	}
	if rec.UsedAt != nil {
		return false, nil
	}
	rec.UsedAt = &at
	return true, nil
}

func newTestManager(t *testing.T) (*Manager, *memStore) {
	t.Helper()
	store := newMemStore()
	m, err := New(Config{}, store)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return m, store
}

func TestMintAndConsume(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	iss, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	if iss.Token == iss.Record.TokenHash {
		t.Fatal("plaintext must never equal the stored hash")
	}

	rec, err := m.Consume(ctx, iss.Token)
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if rec.UserID != "user-1" {
		t.Fatalf("consumed record belongs to %q", rec.UserID)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	iss, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}

	if _, err := m.Consume(ctx, iss.Token); err != nil {
		t.Fatalf("first Consume error: %v", err)
	}
	if _, err := m.Consume(ctx, iss.Token); !errors.Is(err, ErrUsed) {
		t.Fatalf("expected ErrUsed on second consume, got %v", err)
	}
	if _, err := m.Verify(ctx, iss.Token); !errors.Is(err, ErrUsed) {
		t.Fatalf("expected ErrUsed on verify after consume, got %v", err)
	}
}

func TestVerifyDoesNotConsume(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	iss, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}

	if _, err := m.Verify(ctx, iss.Token); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if _, err := m.Verify(ctx, iss.Token); err != nil {
		t.Fatalf("second Verify error: %v", err)
	}
	if _, err := m.Consume(ctx, iss.Token); err != nil {
		t.Fatalf("Consume after verify error: %v", err)
	}
}

func TestConsumeExpired(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	iss, err := m.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}

	store.mu.Lock()
	store.recs[iss.Record.ID].ExpiresAt = time.Now().Add(-time.Minute)
	store.mu.Unlock()

	if _, err := m.Consume(ctx, iss.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestConsumeUnknown(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Consume(context.Background(), "never-minted"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestConcurrentConsumeSingleWinner(t *testing.T) {
	m, _ := newTestManager(t)
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
			_, errs[i] = m.Consume(ctx, iss.Token)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrUsed) {
			t.Fatalf("unexpected consume error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one consume winner, got %d", wins)
	}
}
