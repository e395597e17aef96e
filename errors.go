package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEngineNotReady indicates a method was called on an Engine that was
	// not produced by a successful Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrMissingRootSecret indicates the deployment-wide root secret was not
	// configured. Operational fault, not attacker behavior.
	ErrMissingRootSecret = errors.New("missing root secret")
	// ErrStorageRequired indicates Build was called without any persistence
	// backend.
	ErrStorageRequired = errors.New("storage backend required")
)

// LockoutError is the rejection returned while an account is locked out.
// RetryAfter carries the lockout window for client backoff; the message
// never reveals whether the account exists.
type LockoutError struct {
	Email      string
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account temporarily locked (retry after %s)", e.RetryAfter)
}
