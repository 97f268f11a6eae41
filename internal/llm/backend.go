// Package llm talks to the language models that correct recognized text and
// split text the rule-based splitter cannot shrink.
package llm

import "context"

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request is one completion call.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
	Contract  Contract
}

// Response is the assistant text of a completion. For a FreeTextEnveloped
// contract it excludes the prefilled opening tag; for a StructuredSchema
// contract it is the serialized object.
type Response struct {
	Text         string
	Model        string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Backend is a chat completion provider.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	// Supports reports whether the backend can honor the contract.
	Supports(c Contract) bool
	Name() string
}
