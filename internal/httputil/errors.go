package httputil

import (
	"encoding/json"
	"net/http"
)

// APIError is the error body returned to callers. Details carries the raw
// upstream payload for upstream failures and is omitted otherwise.
type APIError struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, requestID string, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, message string) {
	WriteJSON(w, requestID, statusCode, APIError{Error: message})
}

func WriteRateLimitError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusTooManyRequests, message)
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, message)
}

func WriteMethodNotAllowedError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusMethodNotAllowed, message)
}

func WritePayloadTooLargeError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusRequestEntityTooLarge, message)
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, message)
}

// WriteUpstreamError reports a failed upstream call, relaying its payload.
func WriteUpstreamError(w http.ResponseWriter, requestID, message string, details json.RawMessage) {
	WriteJSON(w, requestID, http.StatusInternalServerError, APIError{Error: message, Details: details})
}
