// Package tts adapts speech engines to a common synthesizer interface and
// holds the loaded engine for the lifetime of the process.
package tts

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dgallion1/narrator/internal/fault"
)

// Synthesizer turns one chunk of text into mono float samples at SampleRate.
// An empty result is valid and means the engine produced no audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language, speaker string) ([]float32, error)
	SampleRate() int
	Close() error
}

// Concurrent is implemented by synthesizers that accept parallel calls.
type Concurrent interface {
	Concurrent() bool
}

// IsConcurrent reports whether s declares itself safe for parallel calls.
func IsConcurrent(s Synthesizer) bool {
	c, ok := s.(Concurrent)
	return ok && c.Concurrent()
}

// Engine names accepted by New.
const (
	EngineOpenAI  = "openai"
	EngineCommand = "command"
)

// Options configures New.
type Options struct {
	Engine     string
	Model      string
	Voice      string
	APIKey     string
	BaseURL    string
	Command    []string
	SampleRate int
}

// New builds the synthesizer named by opts.Engine.
func New(opts Options) (Synthesizer, error) {
	switch strings.ToLower(opts.Engine) {
	case EngineOpenAI, "":
		if opts.APIKey == "" {
			return nil, fault.Input("tts", "openai speech requires OPENAI_API_KEY")
		}
		return NewOpenAISynthesizer(OpenAISynthesizerOptions{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   opts.Model,
			Voice:   opts.Voice,
		}), nil
	case EngineCommand:
		return NewCommandSynthesizer(opts.Command, opts.SampleRate)
	default:
		return nil, fault.Input("tts", fmt.Sprintf("unknown engine %q", opts.Engine))
	}
}

// Handle loads a synthesizer on first use and keeps it until Close.
// Safe for concurrent use.
type Handle struct {
	factory func() (Synthesizer, error)

	once   sync.Once
	mu     sync.Mutex
	synth  Synthesizer
	err    error
	closed bool
}

// NewHandle returns a Handle that calls factory at most once.
func NewHandle(factory func() (Synthesizer, error)) *Handle {
	return &Handle{factory: factory}
}

// Get returns the loaded synthesizer, loading it on the first call. A load
// failure is returned on every call.
func (h *Handle) Get() (Synthesizer, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("tts handle closed")
	}
	h.once.Do(func() {
		s, err := h.factory()
		h.mu.Lock()
		h.synth, h.err = s, err
		if h.closed && s != nil {
			_ = s.Close()
		}
		h.mu.Unlock()
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("tts handle closed")
	}
	if h.err != nil {
		return nil, fmt.Errorf("load synthesizer: %w", h.err)
	}
	return h.synth, nil
}

// Close releases the synthesizer if it was loaded.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.synth == nil {
		return nil
	}
	return h.synth.Close()
}
