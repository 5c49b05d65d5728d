package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"unicode/utf8"

	"github.com/crossdock-ai/ask-gateway/internal/types"
)

// RequestErrorKind classifies a rejected /ask request.
type RequestErrorKind int

const (
	KindMethodNotAllowed RequestErrorKind = iota
	KindMalformedBody
	KindMissingQuestion
	KindQuestionTooLong
	KindBodyTooLarge
)

// RequestError is returned by ParseRequest for client mistakes. Message is
// safe to show to the caller.
type RequestError struct {
	Kind    RequestErrorKind
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RequestError) Unwrap() error { return e.Err }

// Status maps the error kind to its HTTP status code.
func (e *RequestError) Status() int {
	switch e.Kind {
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindQuestionTooLong, KindBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

// Limits bounds what ParseRequest accepts.
type Limits struct {
	MaxQuestionChars   int
	MaxHistoryMessages int
	MaxBodyBytes       int64
	DefaultLanguage    string
}

// ParseRequest validates an /ask call. POST reads a JSON object body; GET
// reads question and language from the query and never requests streaming.
func ParseRequest(w http.ResponseWriter, r *http.Request, limits Limits) (*types.AskRequest, error) {
	req := &types.AskRequest{Language: limits.DefaultLanguage}

	switch r.Method {
	case http.MethodPost:
		body, err := readBody(w, r, limits.MaxBodyBytes)
		if err != nil {
			return nil, err
		}
		if err := decodeBody(body, req, limits); err != nil {
			return nil, err
		}
	case http.MethodGet:
		q := r.URL.Query()
		req.Question = q.Get("question")
		if lang := q.Get("language"); lang != "" {
			req.Language = lang
		}
	default:
		return nil, &RequestError{Kind: KindMethodNotAllowed, Message: "Use GET or POST"}
	}

	if req.Question == "" {
		return nil, &RequestError{Kind: KindMissingQuestion, Message: "Missing question"}
	}
	if limits.MaxQuestionChars > 0 && utf8.RuneCountInString(req.Question) > limits.MaxQuestionChars {
		return nil, &RequestError{Kind: KindQuestionTooLong, Message: "Question too long"}
	}
	return req, nil
}

func readBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	reader := r.Body
	if maxBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &RequestError{Kind: KindBodyTooLarge, Message: "Request body too large", Err: err}
		}
		return nil, &RequestError{Kind: KindMalformedBody, Message: "Invalid JSON body", Err: fmt.Errorf("read request body: %w", err)}
	}
	return body, nil
}

// decodeBody fills req from a JSON object. Fields are read loosely: a
// non-string question counts as missing and history entries without string
// content are dropped.
func decodeBody(body []byte, req *types.AskRequest, limits Limits) error {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return &RequestError{Kind: KindMalformedBody, Message: "Invalid JSON body", Err: fmt.Errorf("unmarshal request body: %w", err)}
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return &RequestError{Kind: KindMalformedBody, Message: "Invalid JSON body"}
	}

	if q, ok := fields["question"].(string); ok {
		req.Question = q
	}
	if lang, ok := fields["language"].(string); ok && lang != "" {
		req.Language = lang
	}
	if entries, ok := fields["history"].([]any); ok {
		req.History = trimHistory(entries, limits.MaxHistoryMessages)
	}
	req.Stream = truthy(fields["stream"])
	return nil
}

// trimHistory keeps the last max entries, then drops those whose content is
// not a string. Missing or non-string roles become "user".
func trimHistory(entries []any, max int) []types.Message {
	if max >= 0 && len(entries) > max {
		entries = entries[len(entries)-max:]
	}

	history := make([]types.Message, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		content, ok := m["content"].(string)
		if !ok {
			continue
		}
		role, ok := m["role"].(string)
		if !ok || role == "" {
			role = types.RoleUser
		}
		history = append(history, types.Message{Role: role, Content: content})
	}
	return history
}

// truthy follows JavaScript truthiness for decoded JSON values.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	default:
		return true
	}
}
