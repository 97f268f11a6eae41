package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/lang"
)

const (
	ContractEnvelope   = "envelope"
	ContractStructured = "structured"
)

// Corrector asks a model to fix recognition errors in one chunk of text.
type Corrector struct {
	backend   Backend
	prompts   *Prompts
	contract  Contract
	maxTokens int
	log       *slog.Logger
}

// CorrectorOptions configure a Corrector.
type CorrectorOptions struct {
	Prompts   *Prompts // defaults to the built-in prompts
	Contract  string   // ContractEnvelope (default) or ContractStructured
	MaxTokens int
	Log       *slog.Logger
}

func NewCorrector(b Backend, opts CorrectorOptions) (*Corrector, error) {
	if opts.Prompts == nil {
		p, err := LoadPrompts("")
		if err != nil {
			return nil, err
		}
		opts.Prompts = p
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	preferred, err := contractByName(opts.Contract, FixedTextEnvelope, CorrectionSchema)
	if err != nil {
		return nil, err
	}
	contract, err := negotiate(b, preferred, FixedTextEnvelope, CorrectionSchema)
	if err != nil {
		return nil, err
	}
	if ContractKind(contract) != ContractKind(preferred) {
		opts.Log.Info("backend does not support preferred contract, falling back",
			"backend", b.Name(), "preferred", ContractKind(preferred), "using", ContractKind(contract))
	}
	return &Corrector{
		backend:   b,
		prompts:   opts.Prompts,
		contract:  contract,
		maxTokens: opts.MaxTokens,
		log:       opts.Log,
	}, nil
}

func contractByName(name string, envelope FreeTextEnveloped, schema StructuredSchema) (Contract, error) {
	switch name {
	case "", ContractEnvelope:
		return envelope, nil
	case ContractStructured:
		return schema, nil
	}
	return nil, fault.Input("contract", fmt.Sprintf("unknown contract %q", name))
}

// negotiate returns preferred when b supports it, otherwise the other
// contract.
func negotiate(b Backend, preferred Contract, envelope FreeTextEnveloped, schema StructuredSchema) (Contract, error) {
	if b.Supports(preferred) {
		return preferred, nil
	}
	var other Contract = envelope
	if _, ok := preferred.(FreeTextEnveloped); ok {
		other = schema
	}
	if b.Supports(other) {
		return other, nil
	}
	return nil, fault.Input("contract", b.Name()+" supports no response contract")
}

// Contract returns the negotiated contract.
func (c *Corrector) Contract() Contract { return c.contract }

// Correct returns the corrected form of text. precedingContext, when not
// empty, is shown to the model as read-only context.
func (c *Corrector) Correct(ctx context.Context, text, language, precedingContext string) (string, error) {
	l, err := lang.Resolve(language)
	if err != nil {
		return "", &fault.InputError{Field: "language", Reason: "unrecognized code " + language, Err: err}
	}

	_, structured := c.contract.(StructuredSchema)
	system, user, err := c.prompts.Correction(PromptData{
		Language:   lang.Name(l),
		Structured: structured,
		Content:    text,
		Context:    precedingContext,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.backend.Complete(ctx, Request{
		System:    system,
		Messages:  []Message{{Role: RoleUser, Content: user}},
		MaxTokens: c.maxTokens,
		Contract:  c.contract,
	})
	if err != nil {
		return "", err
	}

	switch ct := c.contract.(type) {
	case StructuredSchema:
		var out correction
		if err := DecodeStructured(ct, resp.Text, &out); err != nil {
			return "", err
		}
		return out.FixedText, nil
	case FreeTextEnveloped:
		fixed := ParseEnvelope(resp.Text, ct)
		if resp.StopReason == "max_tokens" || resp.StopReason == "length" {
			c.log.Warn("correction truncated by token limit", "chars_in", len(text), "chars_out", len(fixed))
		}
		return fixed, nil
	}
	return "", fault.Input("contract", "unsupported contract")
}
