package authcore

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dervish666/KidsReadingManager-sub001/internal/kdf"
	"github.com/dervish666/KidsReadingManager-sub001/lockout"
	"github.com/dervish666/KidsReadingManager-sub001/password"
	"github.com/dervish666/KidsReadingManager-sub001/rate"
	"github.com/dervish666/KidsReadingManager-sub001/refresh"
	"github.com/dervish666/KidsReadingManager-sub001/reset"
	"github.com/dervish666/KidsReadingManager-sub001/secrets"
	"github.com/dervish666/KidsReadingManager-sub001/store/postgres"
	"github.com/dervish666/KidsReadingManager-sub001/store/redisstore"
	"github.com/dervish666/KidsReadingManager-sub001/token"
)

// signingKeySize is the HS256 key length derived from the root secret.
const signingKeySize = 32

// Backend is the combined persistence surface the engine needs. Both
// store/redisstore and store/postgres satisfy it.
type Backend interface {
	refresh.Store
	lockout.Store
	rate.Store
	ResetTokens() reset.Store
}

// Builder assembles an Engine. Configure it once, call Build once, then
// treat the resulting Engine as immutable.
type Builder struct {
	config  Config
	logger  *slog.Logger
	redis   redis.UniversalClient
	db      *sql.DB
	backend Backend

	built bool
}

// New returns a Builder with default configuration.
func New() *Builder {
	return &Builder{}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRootSecret sets the deployment-wide key material.
func (b *Builder) WithRootSecret(secret []byte) *Builder {
	b.config.RootSecret = secret
	return b
}

// WithLogger sets the structured logger. Without one, degradations are
// silently discarded.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRedis backs every store contract with Redis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDatabase backs every store contract with Postgres. The handle must be
// open and migrated (see store/postgres.RunMigrations).
func (b *Builder) WithDatabase(db *sql.DB) *Builder {
	b.db = db
	return b
}

// WithBackend injects a custom persistence backend, overriding WithRedis
// and WithDatabase. Intended for tests and exotic deployments.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// Build validates the configuration, derives per-purpose keys from the root
// secret, and wires every component. A Builder can build at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := b.resolveBackend()
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	hasher, err := password.New(cfg.Password)
	if err != nil {
		return nil, err
	}

	signingKey, err := kdf.DeriveKey(cfg.RootSecret, kdf.ContextAccessToken, signingKeySize)
	if err != nil {
		return nil, err
	}
	tokens, err := token.New(token.Config{
		SigningKey: signingKey,
		TTL:        cfg.Token.TTL,
		Issuer:     cfg.Issuer,
	})
	if err != nil {
		return nil, err
	}

	cipher, err := secrets.New(cfg.RootSecret)
	if err != nil {
		return nil, err
	}

	refreshTokens, err := refresh.New(cfg.Refresh, backend)
	if err != nil {
		return nil, err
	}
	resetTokens, err := reset.New(cfg.Reset, backend.ResetTokens())
	if err != nil {
		return nil, err
	}
	guard, err := lockout.New(cfg.Lockout, backend)
	if err != nil {
		return nil, err
	}
	limiter, err := rate.New(cfg.Rate, backend, logger)
	if err != nil {
		return nil, err
	}

	b.built = true

	return &Engine{
		config:  cfg,
		logger:  logger,
		metrics: NewMetrics(),
		hasher:  hasher,
		tokens:  tokens,
		cipher:  cipher,
		refresh: refreshTokens,
		reset:   resetTokens,
		guard:   guard,
		limiter: limiter,
	}, nil
}

func (b *Builder) resolveBackend() (Backend, error) {
	switch {
	case b.backend != nil:
		return b.backend, nil
	case b.redis != nil:
		store, err := redisstore.New(b.redis, redisstore.Config{})
		if err != nil {
			return nil, err
		}
		return store, nil
	case b.db != nil:
		store, err := postgres.New(b.db)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, ErrStorageRequired
	}
}
