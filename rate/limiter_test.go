package rate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu    sync.Mutex
	hits  map[string][]time.Time
	fail  error
	prune int
}

func newMemStore() *memStore {
	return &memStore{hits: map[string][]time.Time{}}
}

func (s *memStore) key(key, endpoint string) string {
	return key + "|" + endpoint
}

func (s *memStore) CountHits(_ context.Context, key, endpoint string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	n := 0
	for _, at := range s.hits[s.key(key, endpoint)] {
		if at.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) RecordHit(_ context.Context, key, endpoint string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	k := s.key(key, endpoint)
	s.hits[k] = append(s.hits[k], at)
	return nil
}

func (s *memStore) PruneHits(_ context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune++
	for k, times := range s.hits {
		kept := times[:0]
		for _, at := range times {
			if at.After(before) {
				kept = append(kept, at)
			}
		}
		s.hits[k] = kept
	}
	return nil
}

func newLimiter(t *testing.T, cfg Config, store Store) *Limiter {
	t.Helper()
	l, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return l
}

func TestAllowsUnderLimitThenRejects(t *testing.T) {
	store := newMemStore()
	l := newLimiter(t, Config{Default: Rule{Limit: 3, Window: time.Minute}}, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, "1.2.3.4", "/api/auth/login"); err != nil {
			t.Fatalf("Check %d error: %v", i, err)
		}
	}

	err := l.Check(ctx, "1.2.3.4", "/api/auth/login")
	var limited *LimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected LimitedError, got %v", err)
	}
	if limited.RetryAfter != time.Minute {
		t.Fatalf("expected retry-after of the window length, got %s", limited.RetryAfter)
	}
}

func TestKeysAndEndpointsAreIndependent(t *testing.T) {
	store := newMemStore()
	l := newLimiter(t, Config{Default: Rule{Limit: 1, Window: time.Minute}}, store)
	ctx := context.Background()

	if err := l.Check(ctx, "a", "/x"); err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if err := l.Check(ctx, "b", "/x"); err != nil {
		t.Fatalf("different key must have its own budget: %v", err)
	}
	if err := l.Check(ctx, "a", "/y"); err != nil {
		t.Fatalf("different endpoint must have its own budget: %v", err)
	}
	if err := l.Check(ctx, "a", "/x"); err == nil {
		t.Fatal("expected rejection for exhausted (key, endpoint)")
	}
}

func TestEndpointOverrides(t *testing.T) {
	store := newMemStore()
	l := newLimiter(t, Config{
		Default:   Rule{Limit: 100, Window: time.Minute},
		Overrides: map[string]Rule{"/api/auth/login": {Limit: 1, Window: time.Hour}},
	}, store)
	ctx := context.Background()

	if err := l.Check(ctx, "a", "/api/auth/login"); err != nil {
		t.Fatalf("Check error: %v", err)
	}
	err := l.Check(ctx, "a", "/api/auth/login")
	var limited *LimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected LimitedError from override, got %v", err)
	}
	if limited.RetryAfter != time.Hour {
		t.Fatalf("expected override window in retry-after, got %s", limited.RetryAfter)
	}

	if got := l.Rule("/anything-else"); got.Limit != 100 {
		t.Fatalf("unexpected default rule: %+v", got)
	}
}

func TestFailOpenByDefault(t *testing.T) {
	store := newMemStore()
	l := newLimiter(t, Config{Default: Rule{Limit: 1, Window: time.Minute}}, store)
	ctx := context.Background()

	store.mu.Lock()
	store.fail = errors.New("connection refused")
	store.mu.Unlock()

	// Storage is down: every request proceeds without limiting.
	for i := 0; i < 5; i++ {
		if err := l.Check(ctx, "a", "/x"); err != nil {
			t.Fatalf("fail-open Check %d returned %v", i, err)
		}
	}
}

func TestFailClosedOptIn(t *testing.T) {
	store := newMemStore()
	l := newLimiter(t, Config{Default: Rule{Limit: 1, Window: time.Minute}, FailClosed: true}, store)
	ctx := context.Background()

	store.mu.Lock()
	store.fail = errors.New("connection refused")
	store.mu.Unlock()

	if err := l.Check(ctx, "a", "/x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable in fail-closed mode, got %v", err)
	}
}

func TestOldHitsAgeOut(t *testing.T) {
	store := newMemStore()
	l := newLimiter(t, Config{Default: Rule{Limit: 2, Window: time.Minute}}, store)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Minute)
	if err := store.RecordHit(ctx, "a", "/x", old); err != nil {
		t.Fatalf("RecordHit error: %v", err)
	}
	if err := store.RecordHit(ctx, "a", "/x", old); err != nil {
		t.Fatalf("RecordHit error: %v", err)
	}

	if err := l.Check(ctx, "a", "/x"); err != nil {
		t.Fatalf("stale hits must not count toward the window: %v", err)
	}
}

func TestOpportunisticPrune(t *testing.T) {
	store := newMemStore()
	// PruneFraction 1 forces a prune on every call for the test.
	l := newLimiter(t, Config{Default: Rule{Limit: 100, Window: time.Minute}, PruneFraction: 1}, store)
	ctx := context.Background()

	if err := l.Check(ctx, "a", "/x"); err != nil {
		t.Fatalf("Check error: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.prune == 0 {
		t.Fatal("expected a prune pass with PruneFraction=1")
	}
}

func TestNewConfigValidation(t *testing.T) {
	if _, err := New(Config{}, nil, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := New(Config{Overrides: map[string]Rule{"/x": {Limit: 0, Window: time.Minute}}}, newMemStore(), nil); err == nil {
		t.Fatal("expected error for invalid override")
	}
	if _, err := New(Config{PruneFraction: 2}, newMemStore(), nil); err == nil {
		t.Fatal("expected error for prune fraction out of range")
	}
}
