package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares the sliding window between gateway instances using
// Redis sorted sets.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. If rdb is nil, every hit
// reports an empty window (fail open).
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// slidingWindowScript atomically: removes expired entries, records the
// current hit unconditionally, counts.
// KEYS[1] = sorted set key
// ARGV[1] = window start (unix micro), entries at or before it expire
// ARGV[2] = now (unix micro), used as score
// ARGV[3] = unique member for this hit
// ARGV[4] = TTL milliseconds for the key
// Returns: current count including this hit
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local member = ARGV[3]
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
redis.call('ZADD', key, now, member)
local count = redis.call('ZCARD', key)
redis.call('PEXPIRE', key, ttl)
return count
`)

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	if s.rdb == nil {
		return 0, nil
	}

	nowMicro := now.UnixMicro()
	windowStart := now.Add(-window).UnixMicro()
	member := fmt.Sprintf("%d:%s", nowMicro, uuid.NewString())
	ttlMillis := window.Milliseconds() + 1000

	count, err := slidingWindowScript.Run(ctx, s.rdb, []string{s.key(key)},
		windowStart, nowMicro, member, ttlMillis,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("run sliding window script: %w", err)
	}
	return count, nil
}

func (s *RedisStore) key(clientKey string) string {
	return s.prefix + clientKey
}
