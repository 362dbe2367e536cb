// Package redisstore implements refresh.Store on Redis.
//
// Each record is a hash; a per-user set indexes record ids and a per-user
// string key maps a token hash to its record id. All keys of one user share a
// hash tag so the Lua scripts stay single-slot on Redis Cluster.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goRotate/refresh"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	createStatusDuplicate int64 = 0
	createStatusCreated   int64 = 1

	markStatusMissing int64 = -1
	markStatusSkipped int64 = 0
	markStatusApplied int64 = 1
)

const createRecordScript = `
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "uid", ARGV[2], "th", ARGV[3], "used", "0", "ca", ARGV[4])
redis.call("SET", KEYS[2], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[1])
local retention = tonumber(ARGV[5])
if retention > 0 then
  redis.call("PEXPIRE", KEYS[1], retention)
  redis.call("PEXPIRE", KEYS[2], retention)
  redis.call("PEXPIRE", KEYS[3], retention)
end
return 1
`

var createRecordLua = redis.NewScript(createRecordScript)

const markUsedScript = `
local used = redis.call("HGET", KEYS[1], "used")
if not used then
  return -1
end
if used == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "used", "1", "ua", ARGV[1])
return 1
`

var markUsedLua = redis.NewScript(markUsedScript)

const invalidateAllScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local changed = 0
for _, id in ipairs(ids) do
  local key = ARGV[1] .. id
  if redis.call("HGET", key, "used") == "0" then
    redis.call("HSET", key, "used", "1", "ua", ARGV[2])
    changed = changed + 1
  end
end
return changed
`

var invalidateAllLua = redis.NewScript(invalidateAllScript)

// Store is a Redis-backed refresh.Store.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// Option customises a [Store].
type Option func(*Store)

// WithRetention expires record keys after d. Zero keeps records forever.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Store using prefix as the key namespace.
func New(client redis.UniversalClient, prefix string, opts ...Option) *Store {
	if prefix == "" {
		prefix = "rt"
	}
	s := &Store{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) userTag(userID string) string {
	return s.prefix + ":{" + userID + "}"
}

func (s *Store) recordPrefix(userID string) string {
	return s.userTag(userID) + ":rec:"
}

func (s *Store) recordKey(userID, id string) string {
	return s.recordPrefix(userID) + id
}

func (s *Store) tokenKey(userID, tokenHash string) string {
	return s.userTag(userID) + ":tok:" + tokenHash
}

func (s *Store) userKey(userID string) string {
	return s.userTag(userID) + ":recs"
}

// AtomicMarkUsed reports true: MarkUsed is a Lua compare-and-set.
func (s *Store) AtomicMarkUsed() bool { return true }

// Create persists a new unused record.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Create(ctx context.Context, userID, tokenHash string) (*refresh.Record, error) {
	now := s.now().UTC()
	rec := &refresh.Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: now,
	}

	status, err := createRecordLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(userID, rec.ID), s.tokenKey(userID, tokenHash), s.userKey(userID)},
		rec.ID,
		userID,
		tokenHash,
		now.UnixMilli(),
		s.retention.Milliseconds(),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	if status == createStatusDuplicate {
		return nil, fmt.Errorf("%w: duplicate token hash", refresh.ErrUnavailable)
	}
	if status != createStatusCreated {
		return nil, fmt.Errorf("%w: unknown create status %d", refresh.ErrUnavailable, status)
	}

	// Normalise to the stored millisecond precision.
	rec.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return rec, nil
}

// Find returns the record for userID and tokenHash.
//
//	Performance: 1 GET + 1 HGETALL.
func (s *Store) Find(ctx context.Context, userID, tokenHash string) (*refresh.Record, error) {
	id, err := s.redis.Get(ctx, s.tokenKey(userID, tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, refresh.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}

	fields, err := s.redis.HGetAll(ctx, s.recordKey(userID, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, refresh.ErrNotFound
	}

	return decodeRecord(id, fields)
}

// MarkUsed flips rec to used if it is still unused.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-set).
func (s *Store) MarkUsed(ctx context.Context, rec *refresh.Record) (bool, error) {
	if rec == nil {
		return false, refresh.ErrNotFound
	}

	status, err := markUsedLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(rec.UserID, rec.ID)},
		s.now().UTC().UnixMilli(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}

	switch status {
	case markStatusApplied:
		return true, nil
	case markStatusSkipped:
		return false, nil
	case markStatusMissing:
		return false, refresh.ErrNotFound
	default:
		return false, fmt.Errorf("%w: unknown mark status %d", refresh.ErrUnavailable, status)
	}
}

// InvalidateAll marks every unused record of userID used.
//
//	Performance: 1 Lua EVALSHA; O(records of the user).
func (s *Store) InvalidateAll(ctx context.Context, userID string) (int, error) {
	changed, err := invalidateAllLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(userID)},
		s.recordPrefix(userID),
		s.now().UTC().UnixMilli(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	return int(changed), nil
}

// Ping measures a round trip to Redis.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	return time.Since(start), nil
}

func decodeRecord(id string, fields map[string]string) (*refresh.Record, error) {
	rec := &refresh.Record{
		ID:        id,
		UserID:    fields["uid"],
		TokenHash: fields["th"],
		Used:      fields["used"] == "1",
	}
	if rec.UserID == "" || rec.TokenHash == "" {
		return nil, fmt.Errorf("%w: corrupt record %s", refresh.ErrUnavailable, id)
	}

	createdAt, err := parseMillis(fields["ca"])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt record %s: %v", refresh.ErrUnavailable, id, err)
	}
	rec.CreatedAt = createdAt

	if raw, ok := fields["ua"]; ok {
		usedAt, err := parseMillis(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt record %s: %v", refresh.ErrUnavailable, id, err)
		}
		rec.UsedAt = usedAt
	}

	return rec, nil
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
