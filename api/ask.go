// Package handler is the serverless entry point. The runtime calls Handler
// for every request routed to /api/ask; configuration comes from the
// environment only.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/crossdock-ai/ask-gateway/internal/config"
	"github.com/crossdock-ai/ask-gateway/internal/gateway"
	"github.com/crossdock-ai/ask-gateway/internal/httputil"
	"github.com/crossdock-ai/ask-gateway/internal/prompt"
	"github.com/crossdock-ai/ask-gateway/internal/ratelimit"
	"github.com/crossdock-ai/ask-gateway/internal/upstream"
)

const serverlessAskPath = "/api/ask"

var (
	buildOnce sync.Once
	mux       http.Handler
	buildErr  error
)

// Handler serves the ask endpoint. State built on the first call, including
// the rate limiter, lives as long as the function instance.
func Handler(w http.ResponseWriter, r *http.Request) {
	buildOnce.Do(func() {
		mux, buildErr = build()
	})
	serve(w, r, mux, buildErr)
}

func serve(w http.ResponseWriter, r *http.Request, h http.Handler, err error) {
	if err != nil {
		slog.Error("ask handler unavailable", "error", err)
		gateway.SetCORSHeaders(w)
		httputil.WriteInternalError(w, "", "Internal error")
		return
	}
	h.ServeHTTP(w, r)
}

func build() (http.Handler, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if os.Getenv("ASK_PATH") == "" {
		cfg.Server.AskPath = serverlessAskPath
	}

	builder, err := prompt.NewBuilder(os.Getenv("ASK_SYSTEM_PROMPT"))
	if err != nil {
		return nil, err
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		store := ratelimit.NewStore(context.Background(), cfg, logger)
		limiter = ratelimit.NewLimiter(store, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	health := upstream.NewHealth(cfg.Upstream.DegradedAfter)
	client := upstream.NewClient(cfg.Upstream, health)
	h := gateway.NewHandler(func() *config.Config { return cfg }, builder, client, health, nil)

	return gateway.NewRouter(h, gateway.RouterOptions{
		AskPath: cfg.Server.AskPath,
		Version: "serverless",
		Limiter: limiter,
	}), nil
}
