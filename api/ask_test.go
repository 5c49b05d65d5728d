package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuild_ServesServerlessPath(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"Cross-dock means..."}}],"usage":{"total_tokens":9}}`)
	}))
	defer upstreamSrv.Close()

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ASK_UPSTREAM_BASE_URL", upstreamSrv.URL)
	t.Setenv("ASK_PATH", "")

	h, err := build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"What is cross-docking?"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK     bool   `json:"ok"`
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if !resp.OK || resp.Answer != "Cross-dock means..." {
		t.Errorf("unexpected response %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/ask", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", rec.Code)
	}
}

func TestBuild_MissingCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ASK_PATH", "")

	h, err := build()
	if err != nil {
		t.Fatalf("missing credential must not fail startup: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ask?question=hi", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "OPENAI_API_KEY not configured") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	t.Setenv("ASK_RATE_LIMIT_BACKEND", "memcached")

	if _, err := build(); err == nil {
		t.Error("expected invalid backend to fail the build")
	}
}

func TestServe_BuildFailureKeepsCORS(t *testing.T) {
	rec := httptest.NewRecorder()
	serve(rec, httptest.NewRequest(http.MethodPost, "/api/ask", nil), nil, errors.New("bad config"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected CORS origin *, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET,POST,OPTIONS" {
		t.Errorf("unexpected allowed methods %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("unexpected allowed headers %q", got)
	}
	if !strings.Contains(rec.Body.String(), "Internal error") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
