package rate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"
)

const (
	// DefaultLimit is the per-key, per-endpoint hit budget within the window.
	DefaultLimit = 100
	// DefaultWindow is the trailing window hits are counted over.
	DefaultWindow = 15 * time.Minute
	// DefaultRetention bounds how long stale hit rows are kept before
	// opportunistic pruning removes them.
	DefaultRetention = 24 * time.Hour
	// DefaultPruneFraction is the share of calls that also run a prune pass.
	// Pruning on every call would double write traffic for no benefit.
	DefaultPruneFraction = 0.02
)

// ErrUnavailable indicates the hit store is unreachable. Surfaced to callers
// only in fail-closed mode; the default policy degrades open.
var ErrUnavailable = errors.New("rate limit backend unavailable")

// LimitedError is the retryable rejection returned once a key exceeds its
// budget. RetryAfter carries the window length for client backoff.
type LimitedError struct {
	Key        string
	Endpoint   string
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s (retry after %s)", e.Endpoint, e.RetryAfter)
}

// Store is the persistence contract for rate-limit hits. Hits are individual
// timestamped rows rather than a pre-aggregated counter so that distributed
// writers need no coordination.
type Store interface {
	CountHits(ctx context.Context, key, endpoint string, since time.Time) (int, error)
	RecordHit(ctx context.Context, key, endpoint string, at time.Time) error
	PruneHits(ctx context.Context, before time.Time) error
}

// Rule is a per-endpoint budget.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Config holds limiter tuning parameters.
type Config struct {
	// Default applies to any endpoint without an override.
	Default Rule
	// Overrides maps endpoint names to stricter (or looser) rules; auth
	// endpoints typically carry much smaller budgets than the default.
	Overrides map[string]Rule
	// Retention bounds stale hit-row age before pruning.
	Retention time.Duration
	// PruneFraction is the probability any single Check also prunes.
	PruneFraction float64
	// FailClosed rejects requests when the store is unavailable. The default
	// (false) degrades open: availability of the service outranks this
	// defense-in-depth layer. Opt in only for deployments that need it.
	FailClosed bool
}

// Limiter enforces a sliding-window request budget per (key, endpoint).
type Limiter struct {
	config Config
	store  Store
	logger *slog.Logger
}

// New validates the configuration and returns a Limiter bound to the store.
// A nil logger disables degradation logging.
func New(cfg Config, store Store, logger *slog.Logger) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("rate store required")
	}
	if cfg.Default.Limit == 0 {
		cfg.Default.Limit = DefaultLimit
	}
	if cfg.Default.Window == 0 {
		cfg.Default.Window = DefaultWindow
	}
	if cfg.Default.Limit < 1 || cfg.Default.Window <= 0 {
		return nil, errors.New("rate default rule invalid")
	}
	for name, rule := range cfg.Overrides {
		if rule.Limit < 1 || rule.Window <= 0 {
			return nil, fmt.Errorf("rate override %q invalid", name)
		}
	}
	if cfg.Retention == 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.PruneFraction == 0 {
		cfg.PruneFraction = DefaultPruneFraction
	}
	if cfg.PruneFraction < 0 || cfg.PruneFraction > 1 {
		return nil, errors.New("rate prune fraction must be within [0, 1]")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Limiter{config: cfg, store: store, logger: logger}, nil
}

// Rule returns the effective budget for an endpoint.
func (l *Limiter) Rule(endpoint string) Rule {
	if rule, ok := l.config.Overrides[endpoint]; ok {
		return rule
	}
	return l.config.Default
}

// Check evaluates the budget for (key, endpoint): if the trailing-window hit
// count has reached the limit it returns a *LimitedError; otherwise it
// records this hit and allows the request. Store failures degrade open
// unless FailClosed is set — the request proceeds without limiting and the
// degradation is logged, never fatal.
func (l *Limiter) Check(ctx context.Context, key, endpoint string) error {
	rule := l.Rule(endpoint)
	now := time.Now()

	count, err := l.store.CountHits(ctx, key, endpoint, now.Add(-rule.Window))
	if err != nil {
		return l.degrade(ctx, "count", err)
	}
	if count >= rule.Limit {
		return &LimitedError{Key: key, Endpoint: endpoint, RetryAfter: rule.Window}
	}

	if err := l.store.RecordHit(ctx, key, endpoint, now); err != nil {
		return l.degrade(ctx, "record", err)
	}

	// Opportunistic cleanup on a small random fraction of calls.
	if l.config.PruneFraction > 0 && rand.Float64() < l.config.PruneFraction {
		if err := l.store.PruneHits(ctx, now.Add(-l.config.Retention)); err != nil {
			l.logger.WarnContext(ctx, "rate limit prune failed", "error", err)
		}
	}

	return nil
}

func (l *Limiter) degrade(ctx context.Context, op string, err error) error {
	if l.config.FailClosed {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	l.logger.WarnContext(ctx, "rate limiter degraded open", "op", op, "error", err)
	return nil
}
