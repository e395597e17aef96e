package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dervish666/KidsReadingManager-sub001/lockout"
	"github.com/dervish666/KidsReadingManager-sub001/password"
	"github.com/dervish666/KidsReadingManager-sub001/rate"
	"github.com/dervish666/KidsReadingManager-sub001/refresh"
	"github.com/dervish666/KidsReadingManager-sub001/reset"
	"github.com/dervish666/KidsReadingManager-sub001/role"
	"github.com/dervish666/KidsReadingManager-sub001/secrets"
	"github.com/dervish666/KidsReadingManager-sub001/token"
)

// Engine is the credential and token security surface exposed to the
// routing layer. It holds no mutable request state: every operation is a
// pure function of its inputs plus a persistence call, so one Engine serves
// all requests concurrently.
type Engine struct {
	config  Config
	logger  *slog.Logger
	metrics *Metrics

	hasher  *password.Hasher
	tokens  *token.Manager
	cipher  *secrets.Cipher
	refresh *refresh.Manager
	reset   *reset.Manager
	guard   *lockout.Guard
	limiter *rate.Limiter
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
PASSWORDS
====================================
*/

// HashPassword produces the stored form of a password. Two calls on the
// same input yield different outputs (random salt).
func (e *Engine) HashPassword(plain string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	hash, err := e.hasher.Hash(plain)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricPasswordHashed)
	return hash, nil
}

// VerifyPassword checks a password against its stored hash in constant
// time. NeedsRehash is advisory: a true value means the stored hash was
// produced with a weaker work factor and the caller should re-hash on this
// login, but the engine never blocks on it.
func (e *Engine) VerifyPassword(plain, stored string) (password.Result, error) {
	if e == nil || e.hasher == nil {
		return password.Result{}, ErrEngineNotReady
	}
	res, err := e.hasher.Verify(plain, stored)
	if err != nil || !res.Valid {
		e.metricInc(MetricPasswordVerifyFailure)
	}
	return res, err
}

/*
====================================
ACCESS TOKENS
====================================
*/

// IssueAccessToken signs a short-lived stateless token for the identity
// with the configured TTL.
func (e *Engine) IssueAccessToken(id token.Identity) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	tok, err := e.tokens.Issue(id)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricAccessIssued)
	return tok, nil
}

// IssueAccessTokenWithTTL signs a token with an explicit lifetime.
func (e *Engine) IssueAccessTokenWithTTL(id token.Identity, ttl time.Duration) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	tok, err := e.tokens.IssueWithTTL(id, ttl)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricAccessIssued)
	return tok, nil
}

// VerifyAccessToken checks structure, signature, then expiry, and returns
// the decoded claims. Failures surface as token.ErrMalformed,
// token.ErrSignature, or token.ErrExpired.
func (e *Engine) VerifyAccessToken(tokenStr string) (*token.Claims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.tokens.Verify(tokenStr)
	if err != nil {
		e.metricInc(MetricAccessVerifyFailure)
		return nil, err
	}
	return claims, nil
}

/*
====================================
REFRESH TOKENS
====================================
*/

// MintRefreshToken issues a fresh opaque refresh token for the user. The
// returned plaintext is handed to the client exactly once; only its hash
// is stored.
func (e *Engine) MintRefreshToken(ctx context.Context, userID string) (*refresh.Issuance, error) {
	if e == nil || e.refresh == nil {
		return nil, ErrEngineNotReady
	}
	iss, err := e.refresh.Mint(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricRefreshMinted)
	return iss, nil
}

// RotateRefreshToken exchanges a presented refresh token for a new one,
// revoking the old record first. Presenting an already-rotated token fails
// with refresh.ErrReuse — a possible theft or replay, logged as such.
func (e *Engine) RotateRefreshToken(ctx context.Context, presented string) (*refresh.Issuance, error) {
	if e == nil || e.refresh == nil {
		return nil, ErrEngineNotReady
	}
	iss, err := e.refresh.Rotate(ctx, presented)
	if err != nil {
		if errors.Is(err, refresh.ErrReuse) {
			e.metricInc(MetricRefreshReuseDetected)
			e.logger.WarnContext(ctx, "refresh token reuse detected")
		}
		return nil, err
	}
	e.metricInc(MetricRefreshRotated)
	return iss, nil
}

// RevokeRefreshToken invalidates the presented token (logout). Revoking an
// already-revoked token is a no-op.
func (e *Engine) RevokeRefreshToken(ctx context.Context, presented string) error {
	if e == nil || e.refresh == nil {
		return ErrEngineNotReady
	}
	return e.refresh.Revoke(ctx, presented)
}

// RevokeAllRefreshTokens invalidates every active refresh token for the
// user. Used on password change and logout-everywhere.
func (e *Engine) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	if e == nil || e.refresh == nil {
		return ErrEngineNotReady
	}
	return e.refresh.RevokeAllForUser(ctx, userID)
}

/*
====================================
TENANT SECRETS
====================================
*/

// EncryptSecret seals a tenant-held secret for storage.
func (e *Engine) EncryptSecret(plain string) (string, error) {
	if e == nil || e.cipher == nil {
		return "", ErrEngineNotReady
	}
	return e.cipher.Encrypt(plain)
}

// DecryptSecret reverses EncryptSecret. Pre-migration plaintext values (no
// delimiter) pass through unchanged; a failed authentication tag surfaces
// as secrets.ErrIntegrity without distinguishing wrong key from corruption.
func (e *Engine) DecryptSecret(stored string) (string, error) {
	if e == nil || e.cipher == nil {
		return "", ErrEngineNotReady
	}
	return e.cipher.Decrypt(stored)
}

/*
====================================
BRUTE-FORCE LOCKOUT
====================================
*/

// IsAccountLocked reports whether the email has hit the failure threshold
// within the trailing window. Store failures degrade open: a broken
// attempt log must not lock every account out of the service.
func (e *Engine) IsAccountLocked(ctx context.Context, email string) bool {
	if e == nil || e.guard == nil {
		return false
	}
	locked, err := e.guard.IsLocked(ctx, email)
	if err != nil {
		e.logger.WarnContext(ctx, "lockout check degraded open", "error", err)
		return false
	}
	return locked
}

// CheckAccountLock is IsAccountLocked shaped as a rejection: it returns a
// *LockoutError carrying the retry-after hint when the account is locked.
func (e *Engine) CheckAccountLock(ctx context.Context, email string) error {
	if !e.IsAccountLocked(ctx, email) {
		return nil
	}
	e.metricInc(MetricLockoutRejected)
	return &LockoutError{Email: email, RetryAfter: e.guard.Window()}
}

// RecordLoginAttempt appends to the attempt log. Best-effort: logging a
// failed write must never abort the login that triggered it.
func (e *Engine) RecordLoginAttempt(ctx context.Context, a lockout.Attempt) {
	if e == nil || e.guard == nil {
		return
	}
	if err := e.guard.Record(ctx, a); err != nil {
		e.logger.WarnContext(ctx, "login attempt not recorded", "error", err)
	}
}

// ClearFailedAttempts resets the failure count after a successful login.
func (e *Engine) ClearFailedAttempts(ctx context.Context, email string) error {
	if e == nil || e.guard == nil {
		return ErrEngineNotReady
	}
	return e.guard.ClearFailures(ctx, email)
}

/*
====================================
ROLES AND RATE LIMITS
====================================
*/

// HasPermission reports whether the actual role's level meets or exceeds
// the required role's level. Unknown roles rank below every known role.
func (e *Engine) HasPermission(actual, required string) bool {
	return role.HasPermission(actual, required)
}

// CheckRateLimit evaluates the sliding-window budget for (key, endpoint).
// An exceeded budget returns a *rate.LimitedError with a retry-after hint;
// store failures degrade open unless the config opts into fail-closed.
func (e *Engine) CheckRateLimit(ctx context.Context, key, endpoint string) error {
	if e == nil || e.limiter == nil {
		return ErrEngineNotReady
	}
	err := e.limiter.Check(ctx, key, endpoint)
	var limited *rate.LimitedError
	if errors.As(err, &limited) {
		e.metricInc(MetricRateLimited)
	}
	return err
}

/*
====================================
PASSWORD RESET TOKENS
====================================
*/

// MintPasswordResetToken issues a single-use reset token for the user.
func (e *Engine) MintPasswordResetToken(ctx context.Context, userID string) (*reset.Issuance, error) {
	if e == nil || e.reset == nil {
		return nil, ErrEngineNotReady
	}
	iss, err := e.reset.Mint(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricResetMinted)
	return iss, nil
}

// VerifyPasswordResetToken checks a reset token without consuming it.
func (e *Engine) VerifyPasswordResetToken(ctx context.Context, presented string) (*reset.Record, error) {
	if e == nil || e.reset == nil {
		return nil, ErrEngineNotReady
	}
	return e.reset.Verify(ctx, presented)
}

// ConsumePasswordResetToken validates and burns a reset token in one pass.
// A token consumes exactly once; concurrent consumes produce one winner.
func (e *Engine) ConsumePasswordResetToken(ctx context.Context, presented string) (*reset.Record, error) {
	if e == nil || e.reset == nil {
		return nil, ErrEngineNotReady
	}
	rec, err := e.reset.Consume(ctx, presented)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricResetConsumed)
	return rec, nil
}
