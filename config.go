package authcore

import (
	"errors"
	"time"

	"github.com/dervish666/KidsReadingManager-sub001/lockout"
	"github.com/dervish666/KidsReadingManager-sub001/password"
	"github.com/dervish666/KidsReadingManager-sub001/rate"
	"github.com/dervish666/KidsReadingManager-sub001/refresh"
	"github.com/dervish666/KidsReadingManager-sub001/reset"
)

// minRootSecretBytes rejects root secrets too short to derive keys from.
const minRootSecretBytes = 16

// Config is the engine-wide configuration. Every tunable lives here rather
// than in package-level globals so tests can exercise edge thresholds
// without mutating shared state. Zero values fall back to the documented
// defaults of each component.
type Config struct {
	// RootSecret is the deployment-wide key material. Per-purpose signing
	// and encryption keys are derived from it; it is never used directly.
	RootSecret []byte
	// Issuer is stamped into access tokens.
	Issuer string

	Password password.Config
	Token    TokenConfig
	Refresh  refresh.Config
	Reset    reset.Config
	Lockout  lockout.Config
	Rate     rate.Config
}

// TokenConfig mirrors token.Config minus the signing key, which is always
// derived from RootSecret at build time and never set by the caller.
type TokenConfig struct {
	// TTL is the access token lifetime. Zero means token.DefaultTTL.
	TTL time.Duration
}

// Validate checks the settings the engine itself owns. Component-level
// settings are validated by each component's constructor during Build.
func (c *Config) Validate() error {
	if len(c.RootSecret) == 0 {
		return ErrMissingRootSecret
	}
	if len(c.RootSecret) < minRootSecretBytes {
		return errors.New("root secret too short")
	}
	return nil
}
