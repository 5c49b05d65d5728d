package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv builds a configuration from defaults and environment variables
// only. It is used where no config directory exists (serverless runtimes).
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides configuration values from well-known environment
// variables. Unset or blank variables leave the value untouched.
func ApplyEnv(cfg *Config) {
	if v := env("OPENAI_API_KEY"); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := env("ASK_UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = strings.TrimRight(v, "/")
	}
	if v := env("ASK_MODEL"); v != "" {
		cfg.Upstream.Model = v
	}
	if v := env("ASK_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Upstream.Temperature = f
		}
	}
	if v := env("ASK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := env("ASK_PATH"); v != "" {
		cfg.Server.AskPath = v
	}
	if v := env("ASK_STREAMING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Ask.StreamingEnabled = b
		}
	}
	if v := env("ASK_RATE_LIMIT_BACKEND"); v != "" {
		cfg.RateLimit.Backend = strings.ToLower(v)
	}
	if v := env("ASK_RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.RateLimit.Requests = n
		}
	}
	if v := env("ASK_RATE_LIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.Window = d
		}
	}
	if v := env("REDIS_ADDR"); v != "" {
		cfg.Redis.Addresses = []string{v}
	}
	if v := env("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := env("ASK_LOG_LEVEL"); v != "" {
		cfg.Telemetry.LogLevel = v
	}
}

// Validate rejects configurations the gateway cannot run with. A missing
// upstream key is deliberately not an error here.
func Validate(cfg *Config) error {
	if cfg.Ask.MaxQuestionChars <= 0 {
		return fmt.Errorf("ask.max_question_chars must be positive, got %d", cfg.Ask.MaxQuestionChars)
	}
	if cfg.Ask.MaxHistoryMessages < 0 {
		return fmt.Errorf("ask.max_history_messages must not be negative, got %d", cfg.Ask.MaxHistoryMessages)
	}
	if cfg.Ask.MaxBodyBytes <= 0 {
		return fmt.Errorf("ask.max_body_bytes must be positive, got %d", cfg.Ask.MaxBodyBytes)
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Requests <= 0 {
			return fmt.Errorf("rate_limit.requests must be positive, got %d", cfg.RateLimit.Requests)
		}
		if cfg.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.window must be positive, got %s", cfg.RateLimit.Window)
		}
		switch cfg.RateLimit.Backend {
		case "memory", "redis":
		default:
			return fmt.Errorf("rate_limit.backend must be memory or redis, got %q", cfg.RateLimit.Backend)
		}
	}
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if cfg.Upstream.Model == "" {
		return fmt.Errorf("upstream.model is required")
	}
	if cfg.Server.AskPath == "" || !strings.HasPrefix(cfg.Server.AskPath, "/") {
		return fmt.Errorf("server.ask_path must start with /, got %q", cfg.Server.AskPath)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
