package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dervish666/KidsReadingManager-sub001/lockout"
	"github.com/dervish666/KidsReadingManager-sub001/refresh"
	"github.com/dervish666/KidsReadingManager-sub001/reset"
)

const (
	// DefaultPrefix namespaces every key written by this store.
	DefaultPrefix = "krm:"

	// revokedGrace keeps refresh/reset records alive past their expiry so
	// that late reuse of a consumed token is still detected as reuse rather
	// than silently unknown.
	revokedGrace = 24 * time.Hour

	// auditMaxLen caps the login-attempt audit stream.
	auditMaxLen = 10_000

	casStatusNotFound int64 = -1
	casStatusAlready  int64 = 0
	casStatusApplied  int64 = 1
)

// ErrUnavailable wraps any Redis transport failure.
var ErrUnavailable = errors.New("redis unavailable")

// markOnceScript sets a timestamp field exactly once. Used for both
// refresh-token revocation and reset-token consumption, where two
// concurrent writers must see exactly one winner.
const markOnceScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local current = redis.call("HGET", KEYS[1], ARGV[1])
if current and current ~= "" then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`

var markOnceLua = redis.NewScript(markOnceScript)

// Config holds store tuning parameters.
type Config struct {
	// Prefix namespaces all keys. Empty means DefaultPrefix.
	Prefix string
	// AttemptRetention bounds how long failure entries persist.
	AttemptRetention time.Duration
	// HitRetention bounds how long rate-limit hit entries persist.
	HitRetention time.Duration
}

// Store implements the refresh, reset, lockout, and rate store contracts on
// a single Redis backend.
type Store struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Store bound to the given Redis client.
func New(client redis.UniversalClient, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.AttemptRetention == 0 {
		cfg.AttemptRetention = 24 * time.Hour
	}
	if cfg.HitRetention == 0 {
		cfg.HitRetention = 24 * time.Hour
	}
	return &Store{redis: client, config: cfg}, nil
}

func (s *Store) refreshKey(hash string) string  { return s.config.Prefix + "rt:h:" + hash }
func (s *Store) refreshIDKey(id string) string  { return s.config.Prefix + "rt:id:" + id }
func (s *Store) refreshUserKey(u string) string { return s.config.Prefix + "rt:u:" + u }
func (s *Store) resetKey(hash string) string    { return s.config.Prefix + "prt:h:" + hash }
func (s *Store) resetIDKey(id string) string    { return s.config.Prefix + "prt:id:" + id }
func (s *Store) failuresKey(email string) string {
	return s.config.Prefix + "laf:" + email
}
func (s *Store) auditKey() string { return s.config.Prefix + "la:audit" }
func (s *Store) hitsKey(key, endpoint string) string {
	return s.config.Prefix + "rl:" + key + ":" + endpoint
}

func wrap(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

/*
====================================
REFRESH TOKEN STORE
====================================
*/

// Insert persists a refresh record keyed by its token hash, plus an ID
// index and a per-user member set for revoke-all sweeps. Record keys live
// until expiry plus a grace period so late reuse still reads as reuse.
func (s *Store) Insert(ctx context.Context, rec refresh.Record) error {
	key := s.refreshKey(rec.TokenHash)
	ttl := time.Until(rec.ExpiresAt) + revokedGrace

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":         rec.ID,
		"user_id":    rec.UserID,
		"issued_at":  rec.IssuedAt.Format(time.RFC3339Nano),
		"expires_at": rec.ExpiresAt.Format(time.RFC3339Nano),
		"revoked_at": "",
	})
	pipe.Expire(ctx, key, ttl)
	pipe.Set(ctx, s.refreshIDKey(rec.ID), rec.TokenHash, ttl)
	pipe.SAdd(ctx, s.refreshUserKey(rec.UserID), rec.ID)
	pipe.Expire(ctx, s.refreshUserKey(rec.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap(err)
	}
	return nil
}

// FindByHash loads the record stored under a token hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (*refresh.Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.refreshKey(hash)).Result()
	if err != nil {
		return nil, wrap(err)
	}
	if len(fields) == 0 {
		return nil, refresh.ErrNotFound
	}
	return decodeRefreshRecord(hash, fields)
}

// Revoke marks the record revoked exactly once via a Lua compare-and-set.
// The loser of a concurrent revocation gets refresh.ErrAlreadyRevoked.
func (s *Store) Revoke(ctx context.Context, id string, at time.Time) error {
	hash, err := s.redis.Get(ctx, s.refreshIDKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return refresh.ErrNotFound
		}
		return wrap(err)
	}

	status, err := markOnceLua.Run(ctx, s.redis,
		[]string{s.refreshKey(hash)},
		"revoked_at", at.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return wrap(err)
	}
	switch status {
	case casStatusNotFound:
		return refresh.ErrNotFound
	case casStatusAlready:
		return refresh.ErrAlreadyRevoked
	default:
		return nil
	}
}

// RevokeAllForUser sweeps every record in the user's member set. Records
// already revoked are skipped; missing ones (expired keys) are ignored.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	ids, err := s.redis.SMembers(ctx, s.refreshUserKey(userID)).Result()
	if err != nil {
		return wrap(err)
	}
	for _, id := range ids {
		if err := s.Revoke(ctx, id, at); err != nil {
			if errors.Is(err, refresh.ErrNotFound) || errors.Is(err, refresh.ErrAlreadyRevoked) {
				continue
			}
			return err
		}
	}
	return nil
}

func decodeRefreshRecord(hash string, fields map[string]string) (*refresh.Record, error) {
	issuedAt, err := time.Parse(time.RFC3339Nano, fields["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh record: %v", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh record: %v", err)
	}
	rec := &refresh.Record{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		TokenHash: hash,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	if raw := fields["revoked_at"]; raw != "" {
		revokedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt refresh record: %v", err)
		}
		rec.RevokedAt = &revokedAt
	}
	return rec, nil
}

/*
====================================
PASSWORD RESET TOKEN STORE
====================================
*/

// ResetTokens returns the reset-token view of this store.
func (s *Store) ResetTokens() reset.Store {
	return resetTokens{s}
}

// resetTokens adapts Store to the reset.Store contract; the method names
// collide with the refresh ones otherwise.
type resetTokens struct {
	s *Store
}

func (r resetTokens) Insert(ctx context.Context, rec reset.Record) error {
	return r.s.insertReset(ctx, rec)
}

func (r resetTokens) FindByHash(ctx context.Context, hash string) (*reset.Record, error) {
	return r.s.findResetByHash(ctx, hash)
}

func (r resetTokens) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.s.markResetUsed(ctx, id, at)
}

func (s *Store) insertReset(ctx context.Context, rec reset.Record) error {
	key := s.resetKey(rec.TokenHash)
	ttl := time.Until(rec.ExpiresAt) + revokedGrace
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":         rec.ID,
		"user_id":    rec.UserID,
		"issued_at":  rec.IssuedAt.Format(time.RFC3339Nano),
		"expires_at": rec.ExpiresAt.Format(time.RFC3339Nano),
		"used_at":    "",
	})
	pipe.Expire(ctx, key, ttl)
	pipe.Set(ctx, s.resetIDKey(rec.ID), rec.TokenHash, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Store) findResetByHash(ctx context.Context, hash string) (*reset.Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.resetKey(hash)).Result()
	if err != nil {
		return nil, wrap(err)
	}
	if len(fields) == 0 {
		return nil, reset.ErrNotFound
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, fields["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt reset record: %v", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt reset record: %v", err)
	}
	rec := &reset.Record{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		TokenHash: hash,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	if raw := fields["used_at"]; raw != "" {
		usedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt reset record: %v", err)
		}
		rec.UsedAt = &usedAt
	}
	return rec, nil
}

// markResetUsed sets used_at exactly once. Returns false when another
// consumer already won.
func (s *Store) markResetUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	hash, err := s.redis.Get(ctx, s.resetIDKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, reset.ErrNotFound
		}
		return false, wrap(err)
	}

	status, err := markOnceLua.Run(ctx, s.redis, []string{s.resetKey(hash)}, "used_at", at.Format(time.RFC3339Nano)).Int64()
	if err != nil {
		return false, wrap(err)
	}
	switch status {
	case casStatusNotFound:
		return false, reset.ErrNotFound
	case casStatusAlready:
		return false, nil
	default:
		return true, nil
	}
}

/*
====================================
LOGIN ATTEMPT STORE
====================================
*/

// RecordAttempt appends to the audit stream and, for failures, to the
// per-email sliding-window sorted set.
func (s *Store) RecordAttempt(ctx context.Context, a lockout.Attempt) error {
	pipe := s.redis.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: s.auditKey(),
		MaxLen: auditMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"email":      a.Email,
			"ip_address": a.IPAddress,
			"user_agent": a.UserAgent,
			"success":    strconv.FormatBool(a.Success),
			"created_at": a.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if !a.Success {
		key := s.failuresKey(a.Email)
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(a.CreatedAt.UnixNano()),
			Member: uuid.NewString(),
		})
		pipe.Expire(ctx, key, s.config.AttemptRetention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap(err)
	}
	return nil
}

// CountFailures counts failure entries newer than since, trimming aged
// entries as a side effect.
func (s *Store) CountFailures(ctx context.Context, email string, since time.Time) (int, error) {
	key := s.failuresKey(email)
	min := strconv.FormatInt(since.UnixNano(), 10)

	if err := s.redis.ZRemRangeByScore(ctx, key, "-inf", "("+min).Err(); err != nil {
		return 0, wrap(err)
	}
	count, err := s.redis.ZCount(ctx, key, min, "+inf").Result()
	if err != nil {
		return 0, wrap(err)
	}
	return int(count), nil
}

// ClearFailures drops the failure window for an email. The audit stream is
// untouched: the log is append-only.
func (s *Store) ClearFailures(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.failuresKey(email)).Err(); err != nil {
		return wrap(err)
	}
	return nil
}

/*
====================================
RATE LIMIT HIT STORE
====================================
*/

// RecordHit appends one timestamped hit row for (key, endpoint).
func (s *Store) RecordHit(ctx context.Context, key, endpoint string, at time.Time) error {
	k := s.hitsKey(key, endpoint)
	pipe := s.redis.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{
		Score:  float64(at.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, k, s.config.HitRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap(err)
	}
	return nil
}

// CountHits counts hits for (key, endpoint) newer than since.
func (s *Store) CountHits(ctx context.Context, key, endpoint string, since time.Time) (int, error) {
	count, err := s.redis.ZCount(ctx,
		s.hitsKey(key, endpoint),
		strconv.FormatInt(since.UnixNano(), 10),
		"+inf",
	).Result()
	if err != nil {
		return 0, wrap(err)
	}
	return int(count), nil
}

// PruneHits walks all hit keys and drops entries older than before.
func (s *Store) PruneHits(ctx context.Context, before time.Time) error {
	max := "(" + strconv.FormatInt(before.UnixNano(), 10)
	iter := s.redis.Scan(ctx, 0, s.config.Prefix+"rl:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.ZRemRangeByScore(ctx, iter.Val(), "-inf", max).Err(); err != nil {
			return wrap(err)
		}
	}
	if err := iter.Err(); err != nil {
		return wrap(err)
	}
	return nil
}
