package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/crossdock-ai/ask-gateway/internal/config"
	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

// NewStore picks the backend named by cfg.RateLimit.Backend. A redis backend
// that cannot be reached at startup falls back to the memory store.
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) Store {
	if cfg.RateLimit.Backend != "redis" {
		return NewMemoryStore()
	}
	if len(cfg.Redis.Addresses) == 0 || cfg.Redis.Addresses[0] == "" {
		logger.Warn("redis backend selected without an address, using memory store")
		return NewMemoryStore()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addresses[0],
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not reachable, using memory store", "error", err)
		rdb.Close()
		return NewMemoryStore()
	}

	logger.Info("redis connected", "addr", cfg.Redis.Addresses[0])
	return NewRedisStore(rdb, cfg.Redis.KeyPrefix)
}
