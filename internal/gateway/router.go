package gateway

import (
	"context"
	"net/http"

	"github.com/crossdock-ai/ask-gateway/internal/httputil"
	"github.com/crossdock-ai/ask-gateway/internal/ratelimit"
	"github.com/crossdock-ai/ask-gateway/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RouterOptions configures NewRouter. Limiter may be nil to disable rate
// limiting. MetricsHandler is mounted at MetricsPath when both are set.
type RouterOptions struct {
	AskPath        string
	Version        string
	Limiter        *ratelimit.Limiter
	Metrics        *telemetry.Metrics
	MetricsPath    string
	MetricsHandler http.Handler
}

// NewRouter wires the ask endpoint, health check and optional metrics.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	askPath := opts.AskPath
	if askPath == "" {
		askPath = "/ask"
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	for _, hdr := range corsHeaders {
		r.Use(middleware.SetHeader(hdr[0], hdr[1]))
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteMethodNotAllowedError(w, w.Header().Get("X-Request-ID"), "Use GET or POST")
	})

	r.Options(askPath, preflight)
	r.Get("/healthz", h.Health(opts.Version))
	if opts.MetricsHandler != nil && opts.MetricsPath != "" {
		r.Handle(opts.MetricsPath, opts.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(ratelimit.Middleware(opts.Limiter, opts.Metrics))
		}
		r.Get(askPath, h.Ask)
		r.Post(askPath, h.Ask)
	})

	return r
}

var corsHeaders = [][2]string{
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Methods", "GET,POST,OPTIONS"},
	{"Access-Control-Allow-Headers", "Content-Type"},
}

// SetCORSHeaders adds the CORS headers the router sets on every response,
// for responses written outside of it.
func SetCORSHeaders(w http.ResponseWriter) {
	for _, hdr := range corsHeaders {
		w.Header().Set(hdr[0], hdr[1])
	}
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// RequestID propagates an inbound X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = "req_" + uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"
