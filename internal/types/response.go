package types

import "encoding/json"

// AskResponse is the buffered success body returned to callers.
// Usage is relayed exactly as the upstream reported it (null when absent).
type AskResponse struct {
	OK       bool            `json:"ok"`
	Answer   string          `json:"answer"`
	Language string          `json:"language"`
	Usage    json.RawMessage `json:"usage"`
}

// Completion is the decoded result of a buffered upstream call.
type Completion struct {
	Answer   string
	Model    string
	Usage    Usage
	RawUsage json.RawMessage
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
