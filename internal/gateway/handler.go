package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crossdock-ai/ask-gateway/internal/config"
	"github.com/crossdock-ai/ask-gateway/internal/httputil"
	"github.com/crossdock-ai/ask-gateway/internal/prompt"
	"github.com/crossdock-ai/ask-gateway/internal/ratelimit"
	"github.com/crossdock-ai/ask-gateway/internal/telemetry"
	"github.com/crossdock-ai/ask-gateway/internal/types"
	"github.com/crossdock-ai/ask-gateway/internal/upstream"
)

const (
	modeBuffered = "buffered"
	modeStream   = "stream"
)

// statusClientClosed is recorded when the caller disconnects before the
// answer is complete. Nothing is written to the connection.
const statusClientClosed = 499

// Completer is the upstream chat-completion API.
type Completer interface {
	Complete(ctx context.Context, req *types.UpstreamRequest) (*types.Completion, error)
	Stream(ctx context.Context, req *types.UpstreamRequest) (*upstream.Stream, error)
}

// Handler holds dependencies for the ask endpoint.
type Handler struct {
	cfg      func() *config.Config
	prompts  *prompt.Builder
	upstream Completer
	health   *upstream.Health
	metrics  *telemetry.Metrics
}

func NewHandler(cfg func() *config.Config, prompts *prompt.Builder, completer Completer, health *upstream.Health, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		cfg:      cfg,
		prompts:  prompts,
		upstream: completer,
		health:   health,
		metrics:  metrics,
	}
}

// Ask handles GET and POST on the ask path.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()
	cfg := h.cfg()

	if strings.TrimSpace(cfg.Upstream.APIKey) == "" {
		slog.Error("upstream credential not configured", "request_id", reqID)
		httputil.WriteInternalError(w, reqID, "OPENAI_API_KEY not configured")
		h.record(modeBuffered, http.StatusInternalServerError, "", receivedAt, types.Usage{})
		return
	}

	askReq, err := ParseRequest(w, r, Limits{
		MaxQuestionChars:   cfg.Ask.MaxQuestionChars,
		MaxHistoryMessages: cfg.Ask.MaxHistoryMessages,
		MaxBodyBytes:       cfg.Ask.MaxBodyBytes,
		DefaultLanguage:    cfg.Ask.DefaultLanguage,
	})
	if err != nil {
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			httputil.WriteInternalError(w, reqID, "Internal error")
			return
		}
		slog.Info("request rejected",
			"request_id", reqID,
			"status", reqErr.Status(),
			"reason", reqErr.Message,
		)
		httputil.WriteError(w, reqID, reqErr.Status(), reqErr.Message)
		h.record(modeBuffered, reqErr.Status(), "", receivedAt, types.Usage{})
		return
	}
	askReq.RequestID = reqID
	askReq.ClientKey = ratelimit.ClientKey(r)
	askReq.ReceivedAt = receivedAt

	messages, err := h.prompts.Build(askReq.Question, askReq.Language, askReq.History)
	if err != nil {
		slog.Error("failed to build prompt", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to build prompt")
		h.record(modeBuffered, http.StatusInternalServerError, "", receivedAt, types.Usage{})
		return
	}

	upReq := &types.UpstreamRequest{
		Model:    cfg.Upstream.Model,
		Messages: messages,
	}
	temperature := cfg.Upstream.Temperature
	upReq.Temperature = &temperature
	if cfg.Upstream.MaxTokens > 0 {
		maxTokens := cfg.Upstream.MaxTokens
		upReq.MaxTokens = &maxTokens
	}

	if askReq.Stream && cfg.Ask.StreamingEnabled {
		if flusher, ok := w.(http.Flusher); ok {
			h.handleStream(w, r, flusher, askReq, upReq)
			return
		}
		slog.Debug("response writer cannot flush, answering buffered", "request_id", reqID)
	}

	h.handleBuffered(w, r, askReq, upReq)
}

func (h *Handler) handleBuffered(w http.ResponseWriter, r *http.Request, askReq *types.AskRequest, upReq *types.UpstreamRequest) {
	reqID := askReq.RequestID

	completion, err := h.upstream.Complete(r.Context(), upReq)
	if err != nil {
		if r.Context().Err() != nil {
			h.clientGone(askReq, modeBuffered, upReq.Model, 0)
			return
		}
		status := h.writeUpstreamFailure(w, reqID, "OpenAI error", err)
		h.record(modeBuffered, status, upReq.Model, askReq.ReceivedAt, types.Usage{})
		return
	}

	httputil.WriteJSON(w, reqID, http.StatusOK, types.AskResponse{
		OK:       true,
		Answer:   completion.Answer,
		Language: askReq.Language,
		Usage:    completion.RawUsage,
	})

	duration := time.Since(askReq.ReceivedAt)
	slog.Info("request completed",
		"request_id", reqID,
		"client_key", askReq.ClientKey,
		"model", upReq.Model,
		"language", askReq.Language,
		"history_turns", len(askReq.History),
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"total_tokens", completion.Usage.TotalTokens,
		"duration_ms", duration.Milliseconds(),
		"status", http.StatusOK,
		"stream", false,
	)
	h.record(modeBuffered, http.StatusOK, upReq.Model, askReq.ReceivedAt, completion.Usage)
}

// clientGone logs and records a request abandoned by the caller. The
// upstream call is cancelled with the request context and is not held
// against upstream health.
func (h *Handler) clientGone(askReq *types.AskRequest, mode, model string, fragments int) {
	slog.Info("client disconnected",
		"request_id", askReq.RequestID,
		"client_key", askReq.ClientKey,
		"stream", mode == modeStream,
		"fragments", fragments,
		"duration_ms", time.Since(askReq.ReceivedAt).Milliseconds(),
	)
	h.record(mode, statusClientClosed, model, askReq.ReceivedAt, types.Usage{})
}

// writeUpstreamFailure answers a failed upstream call and returns the status written.
func (h *Handler) writeUpstreamFailure(w http.ResponseWriter, reqID, message string, err error) int {
	if errors.Is(err, upstream.ErrEmptyAnswer) {
		slog.Warn("upstream returned empty answer", "request_id", reqID)
		h.upstreamError("empty")
		httputil.WriteInternalError(w, reqID, "Empty response from model")
		return http.StatusInternalServerError
	}

	if uerr, ok := upstream.IsUpstreamError(err); ok {
		kind := "status"
		if uerr.Status == 0 {
			kind = "transport"
		}
		slog.Error("upstream request failed",
			"request_id", reqID,
			"upstream_status", uerr.Status,
			"error", err,
		)
		h.upstreamError(kind)
		httputil.WriteUpstreamError(w, reqID, message, uerr.Payload)
		return http.StatusInternalServerError
	}

	slog.Error("upstream request failed", "request_id", reqID, "error", err)
	h.upstreamError("transport")
	httputil.WriteInternalError(w, reqID, message)
	return http.StatusInternalServerError
}

// Health handles GET /healthz.
func (h *Handler) Health(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, w.Header().Get("X-Request-ID"), http.StatusOK, healthResponse{
			Status:   "healthy",
			Version:  version,
			Upstream: h.health.Snapshot(),
		})
	}
}

type healthResponse struct {
	Status   string                  `json:"status"`
	Version  string                  `json:"version"`
	Upstream upstream.HealthSnapshot `json:"upstream"`
}

func (h *Handler) record(mode string, status int, model string, receivedAt time.Time, usage types.Usage) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordRequest(telemetry.RequestLabels{
		Status:           strconv.Itoa(status),
		Mode:             mode,
		Model:            model,
		DurationMs:       float64(time.Since(receivedAt).Milliseconds()),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	})
}

func (h *Handler) upstreamError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordUpstreamError(kind)
	}
}

func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
