package password

import (
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/dervish666/KidsReadingManager-sub001/internal"
)

const (
	// DefaultIterations is the current work factor. Hashes recorded with a
	// lower count verify fine but report NeedsRehash.
	DefaultIterations = 120_000
	// DefaultSaltLength is the random salt size in bytes.
	DefaultSaltLength = 16
	// DefaultKeyLength is the derived digest size in bytes (SHA-512 width).
	DefaultKeyLength = 64

	algorithmID   = "pbkdf2"
	minIterations = 10_000
	minSaltLength = 8
	minKeyLength  = 16
)

// ErrMalformedHash indicates a stored hash that cannot be parsed: wrong
// delimiter count, unknown algorithm tag, or corrupt encoding.
var ErrMalformedHash = errors.New("malformed password hash")

// Config holds hasher tuning parameters.
type Config struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// Hasher derives salted PBKDF2-SHA512 password hashes and verifies them in
// constant time with respect to digest content.
type Hasher struct {
	config Config
}

// Result reports the outcome of a verification.
//
// NeedsRehash is advisory: it is true when the stored hash used a lower,
// legacy iteration count than the hasher's current configuration, signalling
// the caller to transparently re-save a fresh hash. It never blocks login.
type Result struct {
	Valid       bool
	NeedsRehash bool
}

// New creates a Hasher. Zero-value config fields fall back to the documented
// defaults; explicit values below the floor are rejected.
func New(cfg Config) (*Hasher, error) {
	if cfg.Iterations == 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.SaltLength == 0 {
		cfg.SaltLength = DefaultSaltLength
	}
	if cfg.KeyLength == 0 {
		cfg.KeyLength = DefaultKeyLength
	}

	if cfg.Iterations < minIterations {
		return nil, fmt.Errorf("password iterations must be >= %d", minIterations)
	}
	if cfg.SaltLength < minSaltLength {
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	}
	if cfg.KeyLength < minKeyLength {
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	}

	return &Hasher{config: cfg}, nil
}

// Hash derives a stored hash for the given password. Any input is accepted,
// including empty and non-ASCII strings; the password is used as raw bytes
// with no Unicode normalization. Each call draws a fresh random salt, so
// identical passwords never produce identical output.
//
// Encoded form: pbkdf2$<iterations>$<salt-b64>$<digest-b64>
func (h *Hasher) Hash(password string) (string, error) {
	salt, err := internal.RandomBytes(h.config.SaltLength)
	if err != nil {
		return "", err
	}

	digest := pbkdf2.Key([]byte(password), salt, h.config.Iterations, h.config.KeyLength, sha512.New)

	return fmt.Sprintf(
		"%s$%d$%s$%s",
		algorithmID,
		h.config.Iterations,
		internal.EncodeB64(salt),
		internal.EncodeB64(digest),
	), nil
}

// Verify recomputes the digest with the stored salt and iteration count and
// compares it byte-for-byte without short-circuiting. A malformed stored
// hash returns ErrMalformedHash with Valid false; it never panics.
func (h *Hasher) Verify(password, encodedHash string) (Result, error) {
	parsed, err := parseHash(encodedHash)
	if err != nil {
		return Result{}, err
	}

	computed := pbkdf2.Key([]byte(password), parsed.salt, parsed.iterations, len(parsed.digest), sha512.New)

	valid := subtle.ConstantTimeCompare(computed, parsed.digest) == 1
	return Result{
		Valid:       valid,
		NeedsRehash: valid && h.needsRehash(parsed),
	}, nil
}

// NeedsRehash reports whether a stored hash was produced with a weaker work
// factor than the current configuration. Malformed input reports an error.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	parsed, err := parseHash(encodedHash)
	if err != nil {
		return false, err
	}
	return h.needsRehash(parsed), nil
}

func (h *Hasher) needsRehash(p *parsedHash) bool {
	if p.iterations < h.config.Iterations {
		return true
	}
	if len(p.digest) != h.config.KeyLength {
		return true
	}
	return false
}

type parsedHash struct {
	iterations int
	salt       []byte
	digest     []byte
}

func parseHash(encodedHash string) (*parsedHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 4 {
		return nil, ErrMalformedHash
	}
	if parts[0] != algorithmID {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, parts[0])
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return nil, fmt.Errorf("%w: invalid iteration count", ErrMalformedHash)
	}

	salt, err := internal.DecodeB64(parts[2])
	if err != nil || len(salt) == 0 {
		return nil, fmt.Errorf("%w: invalid salt encoding", ErrMalformedHash)
	}

	digest, err := internal.DecodeB64(parts[3])
	if err != nil || len(digest) == 0 {
		return nil, fmt.Errorf("%w: invalid digest encoding", ErrMalformedHash)
	}

	return &parsedHash{iterations: iterations, salt: salt, digest: digest}, nil
}
