package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/narrator/internal/fault"
)

const (
	DefaultAnthropicURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
	log        *slog.Logger
}

// AnthropicOptions tune an AnthropicClient. Zero values take defaults.
type AnthropicOptions struct {
	URL     string
	Timeout time.Duration
	Log     *slog.Logger
}

func NewAnthropicClient(apiKey, model string, opts AnthropicOptions) *AnthropicClient {
	if opts.URL == "" {
		opts.URL = DefaultAnthropicURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	return &AnthropicClient{
		apiKey: apiKey,
		model:  model,
		url:    opts.URL,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		maxRetries: MaxRetries,
		backoff:    Backoff,
		log:        opts.Log,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Messages      []anthropicMessage `json:"messages"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

type anthropicResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *AnthropicClient) Name() string { return "anthropic" }

// Supports reports true for both contracts. Structured replies are requested
// through the system prompt and validated by the caller.
func (c *AnthropicClient) Supports(ct Contract) bool {
	switch ct.(type) {
	case FreeTextEnveloped, StructuredSchema:
		return true
	}
	return false
}

// Complete sends req, retrying rate limits and server errors with backoff.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt - 1)
			c.log.Warn("retrying anthropic call", "attempt", attempt, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, fault.Backend(c.Name(), "messages", ctx.Err())
			case <-time.After(wait):
			}
		}
		resp, err := c.send(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}
	return nil, fault.Backend(c.Name(), "messages", lastErr)
}

func (c *AnthropicClient) buildRequest(req Request) anthropicRequest {
	out := anthropicRequest{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = 4096
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}

	switch ct := req.Contract.(type) {
	case FreeTextEnveloped:
		out.Messages = append(out.Messages, anthropicMessage{Role: string(RoleAssistant), Content: ct.Open})
		if ct.Close != "" {
			out.StopSequences = []string{ct.Close}
		}
	case StructuredSchema:
		schema, _ := json.Marshal(ct.Schema)
		instruction := fmt.Sprintf("Respond with ONLY a JSON object that matches this JSON schema, no other text:\n%s", schema)
		if out.System != "" {
			out.System += "\n\n"
		}
		out.System += instruction
	}
	return out
}

func (c *AnthropicClient) send(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic api status %d: %s", resp.StatusCode, fault.Truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &fault.MalformedResponseError{Field: "content", Raw: string(respBody), Err: err}
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("anthropic error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Text:         text.String(),
		Model:        apiResp.Model,
		StopReason:   apiResp.StopReason,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}, nil
}

// Close releases resources.
func (c *AnthropicClient) Close() {
	c.httpClient.CloseIdleConnections()
}
