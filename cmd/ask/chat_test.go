package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crossdock-ai/ask-gateway/internal/client"
	"github.com/crossdock-ai/ask-gateway/internal/types"
)

func TestChatSession_SendsHistory(t *testing.T) {
	var mu sync.Mutex
	var received []types.AskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req types.AskRequest
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		received = append(received, req)
		n := len(received)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"ok":true,"answer":"answer %d","language":"es","usage":null}`, n)
	}))
	defer srv.Close()

	s := &chatSession{
		client:     client.New(srv.URL, 5*time.Second),
		language:   "es",
		maxHistory: 12,
	}
	var out bytes.Buffer
	if err := s.run(context.Background(), strings.NewReader("first\n\nsecond\nexit\n"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(received) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(received))
	}
	if len(received[0].History) != 0 {
		t.Errorf("expected empty history first, got %+v", received[0].History)
	}
	want := []types.Message{
		{Role: types.RoleUser, Content: "first"},
		{Role: types.RoleAssistant, Content: "answer 1"},
	}
	if len(received[1].History) != 2 || received[1].History[0] != want[0] || received[1].History[1] != want[1] {
		t.Errorf("unexpected history %+v", received[1].History)
	}
	if received[1].Language != "es" {
		t.Errorf("expected language es, got %q", received[1].Language)
	}
	if !strings.Contains(out.String(), "answer 2") {
		t.Errorf("expected second answer printed, got %q", out.String())
	}
}

func TestChatSession_RememberTrims(t *testing.T) {
	s := &chatSession{maxHistory: 4}
	for i := 0; i < 5; i++ {
		s.remember(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	if len(s.history) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(s.history))
	}
	if s.history[0].Content != "q3" || s.history[3].Content != "a4" {
		t.Errorf("expected the most recent turns, got %+v", s.history)
	}
}

func TestAsk_StreamWritesChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "AB")
	}))
	defer srv.Close()

	var out bytes.Buffer
	answer, err := ask(context.Background(), client.New(srv.URL, time.Second), types.AskRequest{Question: "q"}, true, false, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "AB" || out.String() != "AB\n" {
		t.Errorf("unexpected answer %q / output %q", answer, out.String())
	}
}
