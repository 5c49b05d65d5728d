package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/crossdock-ai/ask-gateway/internal/httputil"
	"github.com/crossdock-ai/ask-gateway/internal/telemetry"
)

const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRetryAfter         = "Retry-After"

	unknownClient = "unknown"
)

// ClientKey derives the rate limit key for a request: the first
// X-Forwarded-For entry, then CF-Connecting-IP, then the peer address.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return unknownClient
}

// Middleware returns chi middleware that enforces the per-client sliding window.
func Middleware(limiter *Limiter, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")
			key := ClientKey(r)

			result, err := limiter.Check(r.Context(), key)
			if err != nil {
				slog.Warn("rate limit check failed, allowing request",
					"request_id", reqID,
					"error", err,
				)
			}

			w.Header().Set(headerRateLimitLimit, strconv.FormatInt(result.Limit, 10))
			w.Header().Set(headerRateLimitRemaining, strconv.FormatInt(result.Remaining, 10))

			if !result.Allowed {
				slog.Warn("rate limit exceeded",
					"request_id", reqID,
					"client", key,
					"count", result.Count,
					"limit", result.Limit,
				)
				if metrics != nil {
					metrics.RecordRateLimitHit()
				}
				w.Header().Set(headerRetryAfter, strconv.Itoa(int(result.RetryAfter.Seconds())))
				httputil.WriteRateLimitError(w, reqID, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
