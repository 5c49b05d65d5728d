package types

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is the validated form of an incoming /ask call.
type AskRequest struct {
	Question string    `json:"question"`
	Language string    `json:"language"`
	History  []Message `json:"history,omitempty"`
	Stream   bool      `json:"stream,omitempty"`

	// Internal tracking
	RequestID  string    `json:"-"`
	ClientKey  string    `json:"-"`
	ReceivedAt time.Time `json:"-"`
}

// UpstreamRequest is the body sent to the chat-completion endpoint.
type UpstreamRequest struct {
	Model       string    `json:"model"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}
