package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTTL keeps access tokens short-lived; the design favors
	// frequent reissuance over long-lived exposure.
	DefaultTTL = 15 * time.Minute

	maxTTL = 24 * time.Hour
)

var (
	// ErrMalformed indicates the token is not structurally a compact JWS
	// (exactly three dot-separated segments with decodable parts).
	ErrMalformed = errors.New("malformed access token")
	// ErrSignature indicates the recomputed signature did not match. Checked
	// before any payload field is trusted, including exp.
	ErrSignature = errors.New("invalid access token signature")
	// ErrExpired indicates a well-formed, correctly signed token past its exp.
	ErrExpired = errors.New("access token expired")
)

// Identity is the claim set stamped into an access token at issuance. The
// payload carries everything authorization needs so verification yields a
// complete context without further lookups.
type Identity struct {
	UserID     string
	Email      string
	Name       string
	TenantID   string
	TenantSlug string
	Role       string
}

// Claims is the decoded payload of a verified access token.
type Claims struct {
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`
	TenantSlug string `json:"tenant_slug,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity reconstructs the issuance-time claim set from decoded claims.
func (c *Claims) Identity() Identity {
	return Identity{
		UserID:     c.Subject,
		Email:      c.Email,
		Name:       c.Name,
		TenantID:   c.TenantID,
		TenantSlug: c.TenantSlug,
		Role:       c.Role,
	}
}

// Config holds codec tuning parameters.
type Config struct {
	// SigningKey is the HS256 key, already derived from the root secret.
	SigningKey []byte
	// TTL is the default access token lifetime. Zero means DefaultTTL.
	TTL    time.Duration
	Issuer string
}

// Manager issues and verifies stateless signed access tokens.
type Manager struct {
	config Config
}

// New validates the configuration and returns a Manager.
func New(cfg Config) (*Manager, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("token signing key required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 || cfg.TTL > maxTTL {
		return nil, fmt.Errorf("token ttl must be within (0, %s]", maxTTL)
	}
	return &Manager{config: cfg}, nil
}

// TTL returns the effective default lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue signs an access token for the identity with the default TTL.
func (m *Manager) Issue(id Identity) (string, error) {
	return m.IssueWithTTL(id, m.config.TTL)
}

// IssueWithTTL signs an access token with an explicit lifetime. Both iat
// and exp are always stamped.
func (m *Manager) IssueWithTTL(id Identity, ttl time.Duration) (string, error) {
	if id.UserID == "" {
		return "", errors.New("identity subject required")
	}
	if ttl <= 0 || ttl > maxTTL {
		return "", fmt.Errorf("token ttl must be within (0, %s]", maxTTL)
	}

	now := time.Now()
	claims := Claims{
		Email:      id.Email,
		Name:       id.Name,
		TenantID:   id.TenantID,
		TenantSlug: id.TenantSlug,
		Role:       id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.SigningKey)
}

// Verify checks a presented token in strict order: structure, then
// signature, then expiry. The signature is verified before any payload
// field is trusted, so a forged exp cannot bypass the check. Verification
// always recomputes the signature; results are never cached.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformed
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.config.SigningKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if !parsed.Valid {
		return nil, ErrSignature
	}
	if claims.ExpiresAt == nil {
		// Tokens without exp are never issued here; treat them as forged.
		return nil, ErrMalformed
	}
	return claims, nil
}
