package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/crossdock-ai/ask-gateway/internal/config"
	"github.com/crossdock-ai/ask-gateway/internal/gateway"
	"github.com/crossdock-ai/ask-gateway/internal/prompt"
	"github.com/crossdock-ai/ask-gateway/internal/ratelimit"
	"github.com/crossdock-ai/ask-gateway/internal/telemetry"
	"github.com/crossdock-ai/ask-gateway/internal/upstream"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	envFile := flag.String("env-file", ".env", "optional dotenv file with credentials")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
	}

	level := new(slog.LevelVar)
	logger := newLogger(level, "json")
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfg := loader.Config()
	level.Set(parseLevel(cfg.Telemetry.LogLevel))
	if cfg.Telemetry.LogFormat != "json" {
		logger = newLogger(level, cfg.Telemetry.LogFormat)
		slog.SetDefault(logger)
	}

	if cfg.Upstream.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not configured, ask requests will fail until it is set")
	}

	builder, err := prompt.NewBuilder(loader.Prompts().System)
	if err != nil {
		logger.Error("failed to compile system prompt", "error", err)
		os.Exit(1)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		store := ratelimit.NewStore(context.Background(), cfg, logger)
		limiter = ratelimit.NewLimiter(store, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	health := upstream.NewHealth(cfg.Upstream.DegradedAfter)
	client := upstream.NewClient(cfg.Upstream, health)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	loader.OnReload(func() {
		next := loader.Config()
		level.Set(parseLevel(next.Telemetry.LogLevel))
		client.Update(next.Upstream)
		if limiter != nil {
			limiter.SetPolicy(next.RateLimit.Requests, next.RateLimit.Window)
		}
		if err := builder.Load(loader.Prompts().System); err != nil {
			logger.Error("failed to reload system prompt, keeping previous", "error", err)
		}
		logger.Info("runtime settings reloaded",
			"model", next.Upstream.Model,
			"rate_limit_requests", next.RateLimit.Requests,
			"rate_limit_window", next.RateLimit.Window.String(),
		)
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	handler := gateway.NewHandler(loader.Config, builder, client, health, metrics)

	opts := gateway.RouterOptions{
		AskPath: cfg.Server.AskPath,
		Version: version,
		Limiter: limiter,
		Metrics: metrics,
	}
	if cfg.Telemetry.MetricsEnabled {
		opts.MetricsPath = cfg.Telemetry.MetricsPath
		opts.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	r := gateway.NewRouter(handler, opts)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("ask gateway starting",
			"addr", addr,
			"version", version,
			"ask_path", cfg.Server.AskPath,
			"model", cfg.Upstream.Model,
			"rate_limit_backend", cfg.RateLimit.Backend,
		)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("ask gateway stopped")
}

func newLogger(level *slog.LevelVar, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
