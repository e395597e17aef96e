package lockout

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	// DefaultThreshold is the failed-attempt count that triggers lockout.
	DefaultThreshold = 5
	// DefaultWindow is the trailing window failures are counted over, and
	// therefore how long a lockout lasts once triggered.
	DefaultWindow = 15 * time.Minute
)

// ErrUnavailable indicates the attempt store is unreachable. Callers decide
// whether to degrade open; this package only reports.
var ErrUnavailable = errors.New("lockout backend unavailable")

// Attempt is one row of the append-only login attempt log. Attempts against
// unknown emails are recorded identically to real ones so that behavior
// never reveals whether an account exists.
type Attempt struct {
	Email     string
	IPAddress string
	UserAgent string
	Success   bool
	CreatedAt time.Time
}

// Store is the persistence contract for the attempt log. Record appends
// unconditionally; nothing in the log is ever updated in place.
type Store interface {
	RecordAttempt(ctx context.Context, a Attempt) error
	CountFailures(ctx context.Context, email string, since time.Time) (int, error)
	ClearFailures(ctx context.Context, email string) error
}

// Config holds guard tuning parameters.
type Config struct {
	Threshold int
	Window    time.Duration
}

// Guard decides account lockout from a sliding-window count of recent
// failures. It holds no state of its own: every check is a pure function of
// the attempt log and the clock.
type Guard struct {
	config Config
	store  Store
}

// New validates the configuration and returns a Guard bound to the store.
func New(cfg Config, store Store) (*Guard, error) {
	if store == nil {
		return nil, errors.New("lockout store required")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Threshold < 1 {
		return nil, errors.New("lockout threshold must be >= 1")
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Window < 0 {
		return nil, errors.New("lockout window must be positive")
	}
	return &Guard{config: cfg, store: store}, nil
}

// Window returns the configured trailing window, which doubles as the
// retry-after hint on a lockout rejection.
func (g *Guard) Window() time.Duration {
	return g.config.Window
}

// IsLocked reports whether the email has reached the failure threshold
// within the trailing window.
func (g *Guard) IsLocked(ctx context.Context, email string) (bool, error) {
	count, err := g.store.CountFailures(ctx, normalize(email), time.Now().Add(-g.config.Window))
	if err != nil {
		return false, err
	}
	return count >= g.config.Threshold, nil
}

// Record appends an attempt, success or failure alike. Recording successes
// is what lets ClearFailures reset state cleanly after a good login. A
// zero CreatedAt is stamped with the current time.
func (g *Guard) Record(ctx context.Context, a Attempt) error {
	a.Email = normalize(a.Email)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	return g.store.RecordAttempt(ctx, a)
}

// ClearFailures resets the failure count for an email after a successful
// login (or an administrative unlock).
func (g *Guard) ClearFailures(ctx context.Context, email string) error {
	return g.store.ClearFailures(ctx, normalize(email))
}

// Identity keys are case-insensitive: "Owner@Acme.io" and "owner@acme.io"
// must share one failure counter.
func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
