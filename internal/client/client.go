// Package client calls a running ask gateway.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/crossdock-ai/ask-gateway/internal/types"
)

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Status  int
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("gateway returned %d: %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client for the ask endpoint URL, e.g. http://localhost:8080/ask.
// timeout bounds buffered calls only.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ask sends a buffered question.
func (c *Client) Ask(ctx context.Context, req types.AskRequest) (*types.AskResponse, error) {
	req.Stream = false
	resp, err := c.post(ctx, c.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out types.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ask response: %w", err)
	}
	return &out, nil
}

// AskStream sends a streaming question and calls onChunk for each piece of
// text as it arrives. It returns the full answer. A gateway that answers
// buffered instead is handled transparently.
func (c *Client) AskStream(ctx context.Context, req types.AskRequest, onChunk func(string)) (string, error) {
	req.Stream = true
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := c.post(ctx, streamClient, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "application/json" {
		var out types.AskResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode ask response: %w", err)
		}
		onChunk(out.Answer)
		return out.Answer, nil
	}

	var answer strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			answer.WriteString(chunk)
			onChunk(chunk)
		}
		if errors.Is(err, io.EOF) {
			return answer.String(), nil
		}
		if err != nil {
			return answer.String(), fmt.Errorf("read answer stream: %w", err)
		}
	}
}

func (c *Client) post(ctx context.Context, hc *http.Client, req types.AskRequest) (*http.Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ask request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send ask request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error   string          `json:"error"`
			Details json.RawMessage `json:"details"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
			apiErr.Details = body.Details
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, apiErr
	}
	return resp, nil
}
