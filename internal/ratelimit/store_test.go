package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/crossdock-ai/ask-gateway/internal/config"
)

func TestNewStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"memory backend", func(cfg *config.Config) { cfg.RateLimit.Backend = "memory" }},
		{"redis without address", func(cfg *config.Config) {
			cfg.RateLimit.Backend = "redis"
			cfg.Redis.Addresses = nil
		}},
		{"redis unreachable", func(cfg *config.Config) {
			cfg.RateLimit.Backend = "redis"
			cfg.Redis.Addresses = []string{"127.0.0.1:1"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			store := NewStore(context.Background(), cfg, logger)
			if _, ok := store.(*MemoryStore); !ok {
				t.Errorf("expected memory store, got %T", store)
			}
		})
	}
}
