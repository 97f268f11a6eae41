package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/dgallion1/narrator/internal/fault"
)

// OpenAIClient calls an OpenAI-compatible chat completions endpoint. It
// serves OpenAI itself and Ollama.
type OpenAIClient struct {
	client     openai.Client
	model      string
	name       string
	structured bool
}

// OpenAIOptions configure an OpenAIClient.
type OpenAIOptions struct {
	Name       string // reported backend name, defaults to "openai"
	APIKey     string
	BaseURL    string // empty for api.openai.com
	MaxRetries int
	Timeout    time.Duration
	// Structured enables json_schema response formats. Servers that ignore
	// response_format should leave it off.
	Structured bool
}

func NewOpenAIClient(model string, opts OpenAIOptions) *OpenAIClient {
	if opts.Name == "" {
		opts.Name = "openai"
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	return &OpenAIClient{
		client:     openai.NewClient(reqOpts...),
		model:      model,
		name:       opts.Name,
		structured: opts.Structured,
	}
}

func (c *OpenAIClient) Name() string { return c.name }

func (c *OpenAIClient) Supports(ct Contract) bool {
	switch ct.(type) {
	case FreeTextEnveloped:
		return true
	case StructuredSchema:
		return c.structured
	}
	return false
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(m.Content))
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	switch ct := req.Contract.(type) {
	case FreeTextEnveloped:
		msgs = append(msgs, openai.AssistantMessage(ct.Open))
		if ct.Close != "" {
			params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: []string{ct.Close}}
		}
	case StructuredSchema:
		if !c.structured {
			return nil, fault.Input("contract", c.name+" does not support structured responses")
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   ct.Name,
					Strict: openai.Bool(true),
					Schema: ct.Schema,
				},
			},
		}
	}
	params.Messages = msgs

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fault.Backend(c.name, "chat.completions", fmt.Errorf("status %d: %w", apiErr.StatusCode, err))
		}
		return nil, fault.Backend(c.name, "chat.completions", err)
	}
	if len(completion.Choices) == 0 {
		return nil, &fault.MalformedResponseError{Field: "choices", Raw: completion.RawJSON()}
	}

	choice := completion.Choices[0]
	return &Response{
		Text:         choice.Message.Content,
		Model:        completion.Model,
		StopReason:   string(choice.FinishReason),
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}, nil
}
