package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/crossdock-ai/ask-gateway/internal/config"
	"github.com/crossdock-ai/ask-gateway/internal/types"
)

const maxErrorBody = 1 << 20

// Client talks to an OpenAI-compatible chat-completion API. A single
// attempt is made per call; there are no retries.
type Client struct {
	mu  sync.RWMutex
	cfg config.UpstreamConfig

	httpClient *http.Client
	health     *Health
}

// NewClient creates a client for cfg. The transport has no overall timeout
// so streams can outlive it; buffered calls are bounded by cfg.Timeout.
func NewClient(cfg config.UpstreamConfig, health *Health) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Transport: transport},
		health:     health,
	}
}

// Update swaps the endpoint, credential and timeouts after a config reload.
// Transport pool settings stay as constructed.
func (c *Client) Update(cfg config.UpstreamConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

func (c *Client) config() config.UpstreamConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Health returns the observational health indicator.
func (c *Client) Health() *Health { return c.health }

// Complete performs a buffered completion.
func (c *Client) Complete(ctx context.Context, req *types.UpstreamRequest) (*types.Completion, error) {
	cfg := c.config()
	caller := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	body := *req
	body.Stream = false

	resp, err := c.send(ctx, cfg, &body)
	if err != nil {
		c.recordFailure(caller, err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		uerr := newTransportError(fmt.Errorf("read upstream response: %w", err))
		c.recordFailure(caller, uerr)
		return nil, uerr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		uerr := newStatusError(resp.StatusCode, data)
		c.recordFailure(caller, uerr)
		return nil, uerr
	}

	var parsed completionBody
	if err := json.Unmarshal(data, &parsed); err != nil {
		uerr := &UpstreamError{
			Status:  resp.StatusCode,
			Payload: rawPayload(data),
			Err:     fmt.Errorf("unmarshal upstream response: %w", err),
		}
		c.recordFailure(caller, uerr)
		return nil, uerr
	}
	c.health.RecordSuccess()

	completion := &types.Completion{
		Model:    parsed.Model,
		RawUsage: parsed.Usage,
	}
	if len(parsed.Choices) > 0 && parsed.Choices[0].Message.Content != nil {
		completion.Answer = *parsed.Choices[0].Message.Content
	}
	if len(parsed.Usage) > 0 && !bytes.Equal(parsed.Usage, []byte("null")) {
		if err := json.Unmarshal(parsed.Usage, &completion.Usage); err != nil {
			completion.Usage = types.Usage{}
		}
	}

	if completion.Answer == "" {
		return completion, ErrEmptyAnswer
	}
	return completion, nil
}

// Stream opens a streamed completion. A non-2xx answer is returned as an
// *UpstreamError before any fragment is produced. The caller must Close the
// stream.
func (c *Client) Stream(ctx context.Context, req *types.UpstreamRequest) (*Stream, error) {
	cfg := c.config()

	body := *req
	body.Stream = true

	resp, err := c.send(ctx, cfg, &body)
	if err != nil {
		c.recordFailure(ctx, err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		uerr := newStatusError(resp.StatusCode, data)
		c.recordFailure(ctx, uerr)
		return nil, uerr
	}

	stream := NewStream(resp.Body)
	stream.onFinish = func(state StreamState, err error) {
		if state == StateAborted {
			c.recordFailure(ctx, err)
			return
		}
		c.health.RecordSuccess()
	}
	return stream, nil
}

// recordFailure counts err against upstream health. Failures seen after the
// caller's context is done are the caller hanging up and are not counted.
func (c *Client) recordFailure(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	c.health.RecordFailure(err)
}

func (c *Client) send(ctx context.Context, cfg config.UpstreamConfig, body *types.UpstreamRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal upstream request: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	for k, v := range cfg.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newTransportError(err)
	}
	return resp, nil
}

// IsUpstreamError reports whether err carries an *UpstreamError and returns it.
func IsUpstreamError(err error) (*UpstreamError, bool) {
	var uerr *UpstreamError
	if errors.As(err, &uerr) {
		return uerr, true
	}
	return nil, false
}

type completionBody struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage"`
}
