package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyAnswer is returned when a 2xx completion carries no answer text.
var ErrEmptyAnswer = errors.New("empty response from model")

// UpstreamError reports a failed call to the chat-completion API. Status is
// zero for transport failures. Payload is always valid JSON: the upstream
// body when it parses, otherwise the text encoded as a JSON string.
type UpstreamError struct {
	Status  int
	Payload json.RawMessage
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream request failed: %v", e.Err)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Payload)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func newStatusError(status int, body []byte) *UpstreamError {
	return &UpstreamError{Status: status, Payload: rawPayload(body)}
}

func newTransportError(err error) *UpstreamError {
	return &UpstreamError{Payload: jsonString(err.Error()), Err: err}
}

func rawPayload(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body)
	}
	return jsonString(string(body))
}

func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
