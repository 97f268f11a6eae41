package segment

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/lang"
)

// halvingModel splits text into two rune halves and counts calls.
type halvingModel struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *halvingModel) SplitWithModel(_ context.Context, text string, _ int, _ string) ([]string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	r := []rune(text)
	half := len(r) / 2
	return []string{string(r[:half]), string(r[half:])}, nil
}

// scriptedModel returns a fixed answer.
type scriptedModel struct {
	answer []string
	calls  int
}

func (m *scriptedModel) SplitWithModel(context.Context, string, int, string) ([]string, error) {
	m.calls++
	return m.answer, nil
}

const sampleText = `The old lighthouse stood at the edge of the cliff. Its keeper, a quiet man named Tomas, climbed the stairs every evening and lit the lamp before the fishing boats returned.

Storms came often in autumn; the waves struck the rocks below with a sound like distant thunder, but the light never failed. Dr. Alvarez visited once a month to check on him.

"Why do you stay?" she asked one night. He smiled and pointed at the sea, where a dozen small lights were making their way home through the dark.`

func TestSegment_SingleChunkWhenBudgetAllows(t *testing.T) {
	e := New(Options{})
	seq, err := e.Segment(context.Background(), "Sentence one. Sentence two.", 1000, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %q", len(seq), seq.Texts())
	}
	if seq[0].Content != "Sentence one. Sentence two." {
		t.Errorf("expected whole text, got %q", seq[0].Content)
	}
	if seq[0].Budget != BudgetLLM || seq[0].Forced || seq[0].Depth != 0 {
		t.Errorf("unexpected chunk metadata: %+v", seq[0])
	}
}

func TestSegment_ConjunctionScenario(t *testing.T) {
	model := &halvingModel{}
	e := New(Options{Kind: BudgetTTS, Model: model})
	seq, err := e.Segment(context.Background(), "A and B and C and D", 10, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"A and", "B and", "C and D"}
	if !slices.Equal(seq.Texts(), want) {
		t.Fatalf("expected %q, got %q", want, seq.Texts())
	}
	words := strings.Fields("A and B and C and D")
	for _, c := range seq {
		if Chars(c.Content) > 10 {
			t.Errorf("chunk %q exceeds budget", c.Content)
		}
		for _, w := range strings.Fields(c.Content) {
			if !slices.Contains(words, w) {
				t.Errorf("chunk %q split a word", c.Content)
			}
		}
	}
	if model.calls != 0 {
		t.Errorf("expected no model calls, got %d", model.calls)
	}
}

func TestSegment_EmptyInput(t *testing.T) {
	model := &halvingModel{}
	e := New(Options{Model: model})
	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		seq, err := e.Segment(context.Background(), text, 10, "en")
		if err != nil {
			t.Fatalf("Segment(%q): unexpected error: %v", text, err)
		}
		if len(seq) != 0 {
			t.Errorf("Segment(%q): expected empty sequence, got %q", text, seq.Texts())
		}
	}
	if model.calls != 0 {
		t.Errorf("expected zero backend calls, got %d", model.calls)
	}
}

func TestSegment_InvalidInput(t *testing.T) {
	model := &halvingModel{}
	e := New(Options{Model: model})
	ctx := context.Background()

	tests := []struct {
		name   string
		text   string
		budget int
		lang   string
	}{
		{"zero budget", "hello", 0, "en"},
		{"negative budget", "hello", -5, "en"},
		{"invalid utf8", "bad \xff\xfe bytes", 10, "en"},
		{"unknown language", "hello", 10, "??"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Segment(ctx, tt.text, tt.budget, tt.lang)
			if !errors.Is(err, fault.ErrInput) {
				t.Fatalf("expected ErrInput, got %v", err)
			}
		})
	}

	_, err := e.Segment(ctx, "hello", 10, "??")
	var ue *lang.UnsupportedLanguageError
	if !errors.As(err, &ue) {
		t.Errorf("expected UnsupportedLanguageError in chain, got %v", err)
	}
	if model.calls != 0 {
		t.Errorf("expected no backend calls, got %d", model.calls)
	}
}

func TestSegment_Properties(t *testing.T) {
	ctx := context.Background()
	for _, measureName := range []string{"chars", "tokens"} {
		measure, _ := MeasureByName(measureName)
		e := New(Options{Measure: measure})
		for _, budget := range []int{12, 25, 40, 80, 160, 250, 1000} {
			name := fmt.Sprintf("%s/%d", measureName, budget)
			seq, err := e.Segment(ctx, sampleText, budget, "en")
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", name, err)
			}

			for _, c := range seq {
				if measure(c.Content) > budget && !c.Forced {
					t.Errorf("%s: chunk %q exceeds budget without being forced", name, c.Content)
				}
				if c.Forced {
					t.Errorf("%s: unexpected forced chunk %q", name, c.Content)
				}
			}

			if got, want := normalizeSpace(strings.Join(seq.Texts(), " ")), normalizeSpace(sampleText); got != want {
				t.Errorf("%s: round trip mismatch\n got: %q\nwant: %q", name, got, want)
			}

			again, err := e.Segment(ctx, seq.Join(), budget, "en")
			if err != nil {
				t.Fatalf("%s: re-segment error: %v", name, err)
			}
			if !slices.Equal(again.Texts(), seq.Texts()) {
				t.Errorf("%s: not idempotent\nfirst:  %q\nsecond: %q", name, seq.Texts(), again.Texts())
			}
		}
	}
}

func TestSegment_ModelForcedChunksAreIdempotent(t *testing.T) {
	ctx := context.Background()
	texts := []string{
		"abcdefghijklmnop",
		"Strongwordsarehere and smaller pieces follow.",
		sampleText,
	}
	for _, text := range texts {
		for _, budget := range []int{3, 5, 8} {
			name := fmt.Sprintf("%.12q/%d", text, budget)
			model := &halvingModel{}
			e := New(Options{Model: model})
			seq, err := e.Segment(ctx, text, budget, "en")
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", name, err)
			}
			again, err := e.Segment(ctx, seq.Join(), budget, "en")
			if err != nil {
				t.Fatalf("%s: re-segment error: %v", name, err)
			}
			if !slices.Equal(again.Texts(), seq.Texts()) {
				t.Fatalf("%s: not idempotent\nfirst:  %q\nsecond: %q", name, seq.Texts(), again.Texts())
			}
			for i, c := range seq {
				if again[i].Forced != c.Forced {
					t.Errorf("%s: chunk %q forced=%v, re-segmented forced=%v", name, c.Content, c.Forced, again[i].Forced)
				}
				if c.Forced && again[i].Depth != c.Depth {
					t.Errorf("%s: forced chunk %q depth %d, re-segmented depth %d", name, c.Content, c.Depth, again[i].Depth)
				}
			}
		}
	}
}

func TestSegment_ForcedPieceNotSplitAgain(t *testing.T) {
	model := &halvingModel{}
	e := New(Options{Model: model})
	ctx := context.Background()
	seq, err := e.Segment(ctx, "abcdefghijklmnop", 3, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"abcd", "efgh", "ijkl", "mnop"}
	if !slices.Equal(seq.Texts(), want) || seq.ForcedCount() != 4 {
		t.Fatalf("expected four forced chunks %q, got %q (forced %d)", want, seq.Texts(), seq.ForcedCount())
	}
	calls := model.calls

	again, err := e.Segment(ctx, seq.Join(), 3, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(again.Texts(), want) || again.ForcedCount() != 4 {
		t.Errorf("expected %q forced again, got %q (forced %d)", want, again.Texts(), again.ForcedCount())
	}
	if model.calls != calls {
		t.Errorf("expected no further model calls, got %d", model.calls-calls)
	}
}

func TestSegment_ChunkUnchangedWhenResegmented(t *testing.T) {
	e := New(Options{})
	ctx := context.Background()
	seq, err := e.Segment(ctx, sampleText, 120, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range seq {
		again, err := e.Segment(ctx, c.Content, 120, "en")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(again) != 1 || again[0].Content != c.Content {
			t.Errorf("chunk %q changed on re-segmentation: %q", c.Content, again.Texts())
		}
	}
}

func TestSegment_PacksAcrossParagraphs(t *testing.T) {
	e := New(Options{})
	seq, err := e.Segment(context.Background(), "First  line\nwraps here.\n\n\nSecond paragraph.", 100, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq) != 1 {
		t.Fatalf("expected 1 chunk, got %q", seq.Texts())
	}
	if want := "First line wraps here.\n\nSecond paragraph."; seq[0].Content != want {
		t.Errorf("expected %q, got %q", want, seq[0].Content)
	}
}

func TestSegment_OriginTracksParagraphAndSentence(t *testing.T) {
	e := New(Options{})
	seq, err := e.Segment(context.Background(), "Alpha one. Alpha two.\n\nBeta one. Beta two.", 12, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Origin{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	if len(seq) != len(want) {
		t.Fatalf("expected %d chunks, got %q", len(want), seq.Texts())
	}
	for i, c := range seq {
		if c.Origin != want[i] {
			t.Errorf("chunk %d: expected origin %+v, got %+v", i, want[i], c.Origin)
		}
	}
}

func TestSegment_ForcedWithoutModel(t *testing.T) {
	e := New(Options{})
	seq, err := e.Segment(context.Background(), "Pneumonoultramicroscopic words happen.", 10, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq.ForcedCount() != 1 {
		t.Fatalf("expected exactly one forced chunk, got %d in %q", seq.ForcedCount(), seq.Texts())
	}
	if seq[0].Content != "Pneumonoultramicroscopic" || !seq[0].Forced {
		t.Errorf("expected the long word to be forced, got %+v", seq[0])
	}
}

func TestSegment_ModelSplitsLongWord(t *testing.T) {
	model := &halvingModel{}
	e := New(Options{Model: model})
	seq, err := e.Segment(context.Background(), "abcdefghij", 5, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"abcde", "fghij"}
	if !slices.Equal(seq.Texts(), want) {
		t.Fatalf("expected %q, got %q", want, seq.Texts())
	}
	for _, c := range seq {
		if c.Depth != 1 || c.Forced {
			t.Errorf("expected depth 1 unforced chunk, got %+v", c)
		}
	}
	if model.calls != 1 {
		t.Errorf("expected 1 model call, got %d", model.calls)
	}
}

func TestSegment_DepthCapForcesAcceptance(t *testing.T) {
	model := &halvingModel{}
	e := New(Options{Model: model})
	text := "abcdefghijklmnopqrstuvwxyz"
	seq, err := e.Segment(context.Background(), text, 5, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 26 -> 13+13 -> 6+7+6+7, still over 5 at depth 2.
	want := []string{"abcdef", "ghijklm", "nopqrs", "tuvwxyz"}
	if !slices.Equal(seq.Texts(), want) {
		t.Fatalf("expected %q, got %q", want, seq.Texts())
	}
	for _, c := range seq {
		if !c.Forced || c.Depth != DefaultMaxDepth {
			t.Errorf("expected forced chunk at depth %d, got %+v", DefaultMaxDepth, c)
		}
	}
	if model.calls != 3 {
		t.Errorf("expected 3 model calls, got %d", model.calls)
	}
	if stripSpace(strings.Join(seq.Texts(), "")) != text {
		t.Errorf("chunks do not reconstruct input")
	}
}

func TestSegment_ModelRewritingTextIsForced(t *testing.T) {
	model := &scriptedModel{answer: []string{"something", "else entirely"}}
	e := New(Options{Model: model})
	seq, err := e.Segment(context.Background(), "abcdefghijklmnop", 5, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq) != 1 || !seq[0].Forced || seq[0].Content != "abcdefghijklmnop" {
		t.Fatalf("expected original text forced through, got %+v", seq)
	}
	if model.calls != 1 {
		t.Errorf("expected 1 model call, got %d", model.calls)
	}
}

func TestSegment_ModelErrorPropagates(t *testing.T) {
	malformed := &fault.MalformedResponseError{Field: "chunks", Raw: `{"oops": true}`}
	e := New(Options{Model: &halvingModel{err: malformed}})
	_, err := e.Segment(context.Background(), "abcdefghijklmnop", 5, "en")
	if !errors.Is(err, fault.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	var me *fault.MalformedResponseError
	if !errors.As(err, &me) || me.Raw != `{"oops": true}` {
		t.Errorf("expected raw payload preserved, got %v", err)
	}
}

func TestSegment_CancelledContextStopsModelCalls(t *testing.T) {
	model := &halvingModel{}
	e := New(Options{Model: model})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Segment(ctx, "abcdefghijklmnop", 5, "en")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if model.calls != 0 {
		t.Errorf("expected no model calls, got %d", model.calls)
	}
}

func TestSegment_SpacelessLanguage(t *testing.T) {
	e := New(Options{Kind: BudgetTTS})
	text := "今日は晴れです。明日は雨ですか？\n\nはい、そうです。"
	seq, err := e.Segment(context.Background(), text, 10, "ja")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range seq {
		if utf8.RuneCountInString(c.Content) > 10 {
			t.Errorf("chunk %q exceeds budget", c.Content)
		}
	}
	if stripSpace(strings.Join(seq.Texts(), "")) != stripSpace(text) {
		t.Errorf("chunks %q do not reconstruct input", seq.Texts())
	}
	again, err := e.Segment(context.Background(), seq.Join(), 10, "ja")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(again.Texts(), seq.Texts()) {
		t.Errorf("not idempotent: %q vs %q", seq.Texts(), again.Texts())
	}
}

func TestParagraphs(t *testing.T) {
	got := Paragraphs("  One\r\nline.\r\n\r\nTwo.\n \t\nThree.  \n\n\n")
	want := []string{"One line.", "Two.", "Three."}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTokensMeasure(t *testing.T) {
	if Tokens("") != 0 {
		t.Error("expected 0 tokens for empty text")
	}
	if Tokens("word") != 1 {
		t.Errorf("expected 1 token for a single word, got %d", Tokens("word"))
	}
	if got := Tokens("one two three four five six"); got != 7 {
		t.Errorf("expected 7 tokens, got %d", got)
	}
	if _, ok := MeasureByName("bytes"); ok {
		t.Error("expected unknown measure to be rejected")
	}
}
