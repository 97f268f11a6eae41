package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/lang"
)

// chunksEnvelope carries one piece per line when structured replies are not
// available.
var chunksEnvelope = FreeTextEnveloped{Open: "<chunks>", Close: "</chunks>"}

// ChunkSplitter asks a model to cut text the rule-based splitter could not
// bring under budget. It satisfies segment.ModelSplitter.
type ChunkSplitter struct {
	backend   Backend
	prompts   *Prompts
	contract  Contract
	maxTokens int
	unit      string
	audience  string
	log       *slog.Logger
}

func NewChunkSplitter(b Backend, prompts *Prompts, maxTokens int, log *slog.Logger) (*ChunkSplitter, error) {
	if prompts == nil {
		p, err := LoadPrompts("")
		if err != nil {
			return nil, err
		}
		prompts = p
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	contract, err := negotiate(b, SplitSchema, chunksEnvelope, SplitSchema)
	if err != nil {
		return nil, err
	}
	return &ChunkSplitter{
		backend:   b,
		prompts:   prompts,
		contract:  contract,
		maxTokens: maxTokens,
		unit:      "characters",
		audience:  "a speech engine",
		log:       log,
	}, nil
}

// For returns a copy of s whose prompts describe budgets counted in unit
// for pieces consumed by audience.
func (s *ChunkSplitter) For(unit, audience string) *ChunkSplitter {
	c := *s
	c.unit = unit
	c.audience = audience
	return &c
}

func (s *ChunkSplitter) SplitWithModel(ctx context.Context, text string, budget int, language string) ([]string, error) {
	l, err := lang.Resolve(language)
	if err != nil {
		return nil, &fault.InputError{Field: "language", Reason: "unrecognized code " + language, Err: err}
	}

	_, structured := s.contract.(StructuredSchema)
	system, user, err := s.prompts.Split(PromptData{
		Language:   lang.Name(l),
		Budget:     budget,
		Unit:       s.unit,
		Audience:   s.audience,
		Structured: structured,
		Content:    text,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.backend.Complete(ctx, Request{
		System:    system,
		Messages:  []Message{{Role: RoleUser, Content: user}},
		MaxTokens: s.maxTokens,
		Contract:  s.contract,
	})
	if err != nil {
		return nil, err
	}

	switch ct := s.contract.(type) {
	case StructuredSchema:
		var out split
		if err := DecodeStructured(ct, resp.Text, &out); err != nil {
			return nil, err
		}
		s.log.Debug("model split", "pieces", len(out.Chunks), "budget", budget, "unit", s.unit)
		return out.Chunks, nil
	case FreeTextEnveloped:
		body := ParseEnvelope(resp.Text, ct)
		var pieces []string
		for _, line := range strings.Split(body, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				pieces = append(pieces, line)
			}
		}
		s.log.Debug("model split", "pieces", len(pieces), "budget", budget, "unit", s.unit)
		return pieces, nil
	}
	return nil, fault.Input("contract", "unsupported contract")
}
