package gateway

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crossdock-ai/ask-gateway/internal/types"
)

var testLimits = Limits{
	MaxQuestionChars:   4000,
	MaxHistoryMessages: 12,
	MaxBodyBytes:       1 << 20,
	DefaultLanguage:    "en",
}

func parsePost(t *testing.T, body string, limits Limits) (*types.AskRequest, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	return ParseRequest(httptest.NewRecorder(), req, limits)
}

func TestParseRequest_Post(t *testing.T) {
	got, err := parsePost(t, `{"question":"How long is Laredo to Monterrey by rail?","language":"es","stream":true,"history":[{"role":"user","content":"hola"}]}`, testLimits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Question != "How long is Laredo to Monterrey by rail?" {
		t.Errorf("unexpected question %q", got.Question)
	}
	if got.Language != "es" {
		t.Errorf("expected es, got %q", got.Language)
	}
	if !got.Stream {
		t.Error("expected stream requested")
	}
	if len(got.History) != 1 || got.History[0] != (types.Message{Role: "user", Content: "hola"}) {
		t.Errorf("unexpected history %+v", got.History)
	}
}

func TestParseRequest_LanguageDefault(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"absent", `{"question":"q"}`},
		{"empty", `{"question":"q","language":""}`},
		{"non-string", `{"question":"q","language":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePost(t, tt.body, testLimits)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Language != "en" {
				t.Errorf("expected default en, got %q", got.Language)
			}
		})
	}
}

func TestParseRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		body     string
		limits   Limits
		wantKind RequestErrorKind
		wantCode int
	}{
		{"put", http.MethodPut, `{"question":"q"}`, testLimits, KindMethodNotAllowed, http.StatusMethodNotAllowed},
		{"malformed", http.MethodPost, `{`, testLimits, KindMalformedBody, http.StatusBadRequest},
		{"null body", http.MethodPost, `null`, testLimits, KindMalformedBody, http.StatusBadRequest},
		{"string body", http.MethodPost, `"q"`, testLimits, KindMalformedBody, http.StatusBadRequest},
		{"missing", http.MethodPost, `{}`, testLimits, KindMissingQuestion, http.StatusBadRequest},
		{"bool question", http.MethodPost, `{"question":true}`, testLimits, KindMissingQuestion, http.StatusBadRequest},
		{"too long", http.MethodPost, `{"question":"abcdef"}`, Limits{MaxQuestionChars: 5, MaxBodyBytes: 1024}, KindQuestionTooLong, http.StatusRequestEntityTooLarge},
		{"body too large", http.MethodPost, `{"question":"abcdef"}`, Limits{MaxQuestionChars: 100, MaxBodyBytes: 8}, KindBodyTooLarge, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/ask", strings.NewReader(tt.body))
			_, err := ParseRequest(httptest.NewRecorder(), req, tt.limits)

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected *RequestError, got %v", err)
			}
			if reqErr.Kind != tt.wantKind {
				t.Errorf("expected kind %d, got %d", tt.wantKind, reqErr.Kind)
			}
			if reqErr.Status() != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, reqErr.Status())
			}
		})
	}
}

func TestParseRequest_Get(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ask?question=What+is+a+BOL%3F&stream=true", nil)
	got, err := ParseRequest(httptest.NewRecorder(), req, testLimits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Question != "What is a BOL?" {
		t.Errorf("unexpected question %q", got.Question)
	}
	if got.Language != "en" {
		t.Errorf("expected default language, got %q", got.Language)
	}
	if got.Stream {
		t.Error("GET must not request streaming")
	}
}

func TestTrimHistory(t *testing.T) {
	entries := []any{
		map[string]any{"role": "user", "content": "one"},
		map[string]any{"role": "assistant", "content": "two"},
		map[string]any{"role": "assistant", "content": 3.0},
		"not an object",
		map[string]any{"content": "no role"},
		map[string]any{"role": "tool", "content": "odd role"},
	}

	got := trimHistory(entries, 4)

	want := []types.Message{
		{Role: "user", Content: "no role"},
		{Role: "tool", Content: "odd role"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestTrimHistory_KeepsOrderUnderLimit(t *testing.T) {
	entries := []any{
		map[string]any{"role": "user", "content": "a"},
		map[string]any{"role": "assistant", "content": "b"},
	}
	got := trimHistory(entries, 12)
	if len(got) != 2 || got[0].Content != "a" || got[1].Content != "b" {
		t.Errorf("unexpected history %+v", got)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{0.0, false},
		{math.NaN(), false},
		{-1.5, true},
		{"", false},
		{"false", true},
		{[]any{}, true},
		{map[string]any{}, true},
	}

	for _, tt := range tests {
		if got := truthy(tt.v); got != tt.want {
			t.Errorf("truthy(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}
