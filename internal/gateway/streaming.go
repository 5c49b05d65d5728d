package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/crossdock-ai/ask-gateway/internal/httputil"
	"github.com/crossdock-ai/ask-gateway/internal/types"
	"github.com/crossdock-ai/ask-gateway/internal/upstream"
)

// handleStream opens an upstream stream and relays answer fragments as
// plain text. Headers are committed with the first fragment, so a stream
// that aborts before producing anything is still reported as an error.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request, flusher http.Flusher, askReq *types.AskRequest, upReq *types.UpstreamRequest) {
	reqID := askReq.RequestID

	stream, err := h.upstream.Stream(r.Context(), upReq)
	if err != nil {
		if r.Context().Err() != nil {
			h.clientGone(askReq, modeStream, upReq.Model, 0)
			return
		}
		status := h.writeUpstreamFailure(w, reqID, "OpenAI stream error", err)
		h.record(modeStream, status, upReq.Model, askReq.ReceivedAt, types.Usage{})
		return
	}
	defer stream.Close()

	slog.Info("streaming started",
		"request_id", reqID,
		"client_key", askReq.ClientKey,
		"model", upReq.Model,
	)

	first, ok := stream.Next()
	if !ok && r.Context().Err() != nil {
		h.clientGone(askReq, modeStream, upReq.Model, 0)
		return
	}
	if !ok && stream.State() == upstream.StateAborted {
		slog.Error("upstream stream aborted before first fragment",
			"request_id", reqID,
			"error", stream.Err(),
		)
		h.upstreamError("stream")
		httputil.WriteUpstreamError(w, reqID, "OpenAI stream error", jsonString(stream.Err().Error()))
		h.record(modeStream, http.StatusInternalServerError, upReq.Model, askReq.ReceivedAt, types.Usage{})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Request-ID", reqID)
	// A long generation may outlast the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("write deadline not cleared", "request_id", reqID, "error", err)
	}
	w.WriteHeader(http.StatusOK)

	fragments := 0
	disconnected := false
	for frag := first; ok; frag, ok = stream.Next() {
		if _, err := io.WriteString(w, frag); err != nil {
			disconnected = true
			break
		}
		flusher.Flush()
		fragments++
		if h.metrics != nil {
			h.metrics.RecordStreamFragment()
		}
	}
	if !ok {
		flusher.Flush()
	}

	if disconnected || r.Context().Err() != nil {
		h.clientGone(askReq, modeStream, upReq.Model, fragments)
		return
	}
	if stream.State() == upstream.StateAborted {
		slog.Error("upstream stream aborted, response truncated",
			"request_id", reqID,
			"fragments", fragments,
			"error", stream.Err(),
		)
		h.upstreamError("stream")
	}

	slog.Info("request completed",
		"request_id", reqID,
		"client_key", askReq.ClientKey,
		"model", upReq.Model,
		"language", askReq.Language,
		"history_turns", len(askReq.History),
		"fragments", fragments,
		"final_state", stream.State().String(),
		"duration_ms", time.Since(askReq.ReceivedAt).Milliseconds(),
		"status", http.StatusOK,
		"stream", true,
	)
	h.record(modeStream, http.StatusOK, upReq.Model, askReq.ReceivedAt, types.Usage{})
}
