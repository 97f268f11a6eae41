package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/narrator/internal/segment"
)

var _ segment.ModelSplitter = (*ChunkSplitter)(nil)

func TestChunkSplitter_Structured(t *testing.T) {
	b := &fakeBackend{reply: `{"chunks": ["Donaudampf", "schifffahrt"]}`, structured: true, envelope: true}
	s, err := NewChunkSplitter(b, nil, 1000, nil)
	require.NoError(t, err)

	got, err := s.SplitWithModel(context.Background(), "Donaudampfschifffahrt", 12, "de")
	require.NoError(t, err)
	assert.Equal(t, []string{"Donaudampf", "schifffahrt"}, got)

	req := b.requests[0]
	assert.IsType(t, StructuredSchema{}, req.Contract)
	assert.Contains(t, req.System, "at most 12 characters")
	assert.Contains(t, req.System, "German")
	assert.Contains(t, req.Messages[0].Content, "Donaudampfschifffahrt")
}

func TestChunkSplitter_LinesInEnvelope(t *testing.T) {
	b := &fakeBackend{reply: "\nfirst part,\n\n  second part\n</chunks>", envelope: true}
	s, err := NewChunkSplitter(b, nil, 0, nil)
	require.NoError(t, err)

	got, err := s.SplitWithModel(context.Background(), "first part, second part", 12, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"first part,", "second part"}, got)
	assert.Equal(t, chunksEnvelope, b.requests[0].Contract)
	assert.Contains(t, b.requests[0].System, "one piece per line")
}

func TestChunkSplitter_ForTokenBudget(t *testing.T) {
	b := &fakeBackend{reply: `{"chunks": ["one two", "three four"]}`, structured: true}
	s, err := NewChunkSplitter(b, nil, 0, nil)
	require.NoError(t, err)

	llmStage := s.For("tokens", "a language model")
	_, err = llmStage.SplitWithModel(context.Background(), "one two three four", 3, "en")
	require.NoError(t, err)
	assert.Contains(t, b.requests[0].System, "pieces for a language model")
	assert.Contains(t, b.requests[0].System, "at most 3 tokens")

	_, err = s.SplitWithModel(context.Background(), "one two three four", 10, "en")
	require.NoError(t, err)
	assert.Contains(t, b.requests[1].System, "pieces for a speech engine")
	assert.Contains(t, b.requests[1].System, "at most 10 characters")
}

func TestChunkSplitter_FeedsEngine(t *testing.T) {
	b := &fakeBackend{reply: `{"chunks": ["abcde", "fghij"]}`, structured: true}
	s, err := NewChunkSplitter(b, nil, 0, nil)
	require.NoError(t, err)

	engine := segment.New(segment.Options{Kind: segment.BudgetTTS, Model: s})
	seq, err := engine.Segment(context.Background(), "abcdefghij", 5, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"abcde", "fghij"}, seq.Texts())
	assert.Zero(t, seq.ForcedCount())
}
