package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Ask       AskConfig       `yaml:"ask"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	AskPath          string        `yaml:"ask_path"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	// WriteTimeout bounds buffered answers. Streamed answers clear it.
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// UpstreamConfig describes the chat-completion service. APIKey is the only
// required secret; an empty key is reported per request, not at startup.
type UpstreamConfig struct {
	BaseURL               string            `yaml:"base_url"`
	APIKey                string            `yaml:"api_key"`
	Model                 string            `yaml:"model"`
	Temperature           float64           `yaml:"temperature"`
	MaxTokens             int               `yaml:"max_tokens"`
	Timeout               time.Duration     `yaml:"timeout"`
	ResponseHeaderTimeout time.Duration     `yaml:"response_header_timeout"`
	MaxIdleConns          int               `yaml:"max_idle_conns"`
	DegradedAfter         int               `yaml:"degraded_after"`
	Headers               map[string]string `yaml:"headers,omitempty"`
}

type AskConfig struct {
	MaxQuestionChars   int    `yaml:"max_question_chars"`
	MaxHistoryMessages int    `yaml:"max_history_messages"`
	MaxBodyBytes       int64  `yaml:"max_body_bytes"`
	DefaultLanguage    string `yaml:"default_language"`
	StreamingEnabled   bool   `yaml:"streaming_enabled"`
}

type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Backend  string        `yaml:"backend"` // "memory" or "redis"
	Requests int64         `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
	KeyPrefix string   `yaml:"key_prefix"`
}

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsPath    string `yaml:"metrics_path"`
}

// PromptsConfig holds the swappable system instruction. System is a
// text/template rendered with {{.Language}}.
type PromptsConfig struct {
	System string `yaml:"system"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			AskPath:          "/ask",
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:               "https://api.openai.com/v1",
			Model:                 "gpt-4o-mini",
			Temperature:           0.2,
			Timeout:               60 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			MaxIdleConns:          32,
			DegradedAfter:         5,
		},
		Ask: AskConfig{
			MaxQuestionChars:   4000,
			MaxHistoryMessages: 12,
			MaxBodyBytes:       1 << 20,
			DefaultLanguage:    "en",
			StreamingEnabled:   true,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Backend:  "memory",
			Requests: 30,
			Window:   time.Minute,
		},
		Redis: RedisConfig{
			Addresses: []string{"localhost:6379"},
			DB:        0,
			PoolSize:  20,
			KeyPrefix: "crossdock:rl:",
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
			MetricsPath:    "/metrics",
		},
	}
}
