// Package segment splits text into ordered, budget-bounded chunks.
//
// Text is split into paragraphs on blank lines, paragraphs into sentences,
// and sentences that exceed the budget into clause-level pieces on
// language-specific breakpoints. Pieces the rules cannot bring under budget
// are handed to a ModelSplitter, recursing at most MaxDepth times before the
// piece is accepted as forced. Sentences and pieces are then packed greedily
// into chunks. Segmenting the Join of a Sequence with the same budget on the
// same Engine returns the same Sequence: pieces forced after model-assisted
// splitting are remembered and accepted again without another model call.
package segment

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/lang"
)

// BudgetKind names the stage a budget belongs to.
type BudgetKind int

const (
	BudgetLLM BudgetKind = iota + 1
	BudgetTTS
)

func (k BudgetKind) String() string {
	switch k {
	case BudgetLLM:
		return "llm"
	case BudgetTTS:
		return "tts"
	}
	return "unknown"
}

// Origin locates the first sentence of a chunk in the source text.
type Origin struct {
	Paragraph int `json:"paragraph"`
	Sentence  int `json:"sentence"`
}

// Chunk is one bounded span of text.
type Chunk struct {
	Content string     `json:"content"`
	Origin  Origin     `json:"origin"`
	Budget  BudgetKind `json:"budget_kind"`
	Depth   int        `json:"depth"`  // model-assisted split depth that produced it
	Forced  bool       `json:"forced"` // accepted over budget
}

// Sequence is an ordered list of chunks in reading order.
type Sequence []Chunk

// ParagraphSeparator joins chunks and paragraphs.
const ParagraphSeparator = "\n\n"

// Join reassembles the sequence into text that segments back to the same
// chunks.
func (s Sequence) Join() string {
	return strings.Join(s.Texts(), ParagraphSeparator)
}

// Texts returns the chunk contents in order.
func (s Sequence) Texts() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Content
	}
	return out
}

// ForcedCount returns how many chunks were accepted over budget.
func (s Sequence) ForcedCount() int {
	n := 0
	for _, c := range s {
		if c.Forced {
			n++
		}
	}
	return n
}

// Options configure an Engine.
type Options struct {
	Kind     BudgetKind
	Measure  Measure       // defaults to Chars
	Model    ModelSplitter // optional
	MaxDepth int           // defaults to DefaultMaxDepth
	Log      *slog.Logger
}

// maxRemembered bounds the forced pieces an Engine keeps.
const maxRemembered = 4096

// Engine segments text for one pipeline stage. It is safe for concurrent use.
type Engine struct {
	kind     BudgetKind
	measure  Measure
	model    ModelSplitter
	maxDepth int
	log      *slog.Logger

	mu     sync.Mutex
	forced map[forcedKey]int // piece -> depth it was forced at
}

type forcedKey struct {
	text   string
	budget int
}

func New(opts Options) *Engine {
	if opts.Measure == nil {
		opts.Measure = Chars
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	if opts.Kind == 0 {
		opts.Kind = BudgetLLM
	}
	return &Engine{
		kind:     opts.Kind,
		measure:  opts.Measure,
		model:    opts.Model,
		maxDepth: opts.MaxDepth,
		log:      opts.Log,
		forced:   make(map[forcedKey]int),
	}
}

// rememberForced records a piece accepted over budget after the model was
// consulted, so re-segmenting it reproduces the same chunk.
func (e *Engine) rememberForced(piece string, budget, depth int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.forced) >= maxRemembered {
		clear(e.forced)
	}
	e.forced[forcedKey{normalizeSpace(piece), budget}] = depth
}

func (e *Engine) forcedDepth(piece string, budget int) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	depth, ok := e.forced[forcedKey{normalizeSpace(piece), budget}]
	return depth, ok
}

// unit is a packing unit: a sentence, or a piece of an over-budget sentence.
type unit struct {
	text      string
	origin    Origin
	paragraph int
	depth     int
	forced    bool
}

// Segment splits text into chunks of at most budget units.
func (e *Engine) Segment(ctx context.Context, text string, budget int, language string) (Sequence, error) {
	if !utf8.ValidString(text) {
		return nil, fault.Input("text", "not valid UTF-8")
	}
	if budget <= 0 {
		return nil, fault.Input("budget", fmt.Sprintf("must be positive, got %d", budget))
	}
	l, err := lang.Resolve(language)
	if err != nil {
		return nil, &fault.InputError{Field: "language", Reason: "unrecognized code " + language, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	rules := rulesFor(l)
	splitter := NewSplitter(l, e.measure)

	var units []unit
	for pi, para := range Paragraphs(text) {
		si := 0
		for sentence := range sentences(para, rules) {
			origin := Origin{Paragraph: pi, Sentence: si}
			si++
			if e.measure(sentence) <= budget {
				units = append(units, unit{text: sentence, origin: origin, paragraph: pi})
				continue
			}
			pieces, err := e.resolve(ctx, sentence, budget, l, splitter, 0)
			if err != nil {
				return nil, err
			}
			for _, p := range pieces {
				p.origin = origin
				p.paragraph = pi
				units = append(units, p)
			}
		}
	}

	return e.pack(units, budget, l.Spaceless()), nil
}

// resolve breaks an over-budget sentence into pieces, escalating pieces the
// breakpoint rules cannot shrink.
func (e *Engine) resolve(ctx context.Context, text string, budget int, l lang.Language, splitter *Splitter, depth int) ([]unit, error) {
	if d, ok := e.forcedDepth(text, budget); ok {
		return []unit{{text: text, depth: d, forced: true}}, nil
	}
	var out []unit
	for _, piece := range splitter.Split(text, budget) {
		if e.measure(piece) <= budget {
			out = append(out, unit{text: piece, depth: depth})
			continue
		}
		sub, err := e.escalate(ctx, piece, budget, l, splitter, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func (e *Engine) escalate(ctx context.Context, piece string, budget int, l lang.Language, splitter *Splitter, depth int) ([]unit, error) {
	forced := func(reason string) []unit {
		e.log.Warn("accepting over-budget chunk",
			"reason", reason,
			"stage", e.kind.String(),
			"size", e.measure(piece),
			"budget", budget,
			"depth", depth,
		)
		return []unit{{text: piece, depth: depth, forced: true}}
	}

	if e.model == nil {
		return forced("no model splitter"), nil
	}
	if d, ok := e.forcedDepth(piece, budget); ok {
		return []unit{{text: piece, depth: d, forced: true}}, nil
	}
	if depth >= e.maxDepth {
		e.rememberForced(piece, budget, depth)
		return forced("max depth reached"), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parts, err := e.model.SplitWithModel(ctx, piece, budget, l.Code)
	if err != nil {
		return nil, fmt.Errorf("model split: %w", err)
	}
	parts = cleanPieces(parts)
	if len(parts) < 2 {
		e.rememberForced(piece, budget, depth)
		return forced("model returned a single piece"), nil
	}
	if !sameText(parts, piece) {
		e.rememberForced(piece, budget, depth)
		return forced("model pieces do not match input"), nil
	}

	var out []unit
	for _, p := range parts {
		if e.measure(p) <= budget {
			out = append(out, unit{text: p, depth: depth + 1})
			continue
		}
		sub, err := e.resolve(ctx, p, budget, l, splitter, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// pack merges consecutive units into chunks while they fit the budget.
func (e *Engine) pack(units []unit, budget int, spaceless bool) Sequence {
	inParagraph := " "
	if spaceless {
		inParagraph = ""
	}

	var seq Sequence
	var cur *Chunk
	lastParagraph := -1
	for _, u := range units {
		if cur != nil && !u.forced && !cur.Forced {
			sep := inParagraph
			if u.paragraph != lastParagraph {
				sep = ParagraphSeparator
			}
			if candidate := cur.Content + sep + u.text; e.measure(candidate) <= budget {
				cur.Content = candidate
				cur.Depth = max(cur.Depth, u.depth)
				lastParagraph = u.paragraph
				continue
			}
		}
		if cur != nil {
			seq = append(seq, *cur)
		}
		cur = &Chunk{
			Content: u.text,
			Origin:  u.origin,
			Budget:  e.kind,
			Depth:   u.depth,
			Forced:  u.forced,
		}
		lastParagraph = u.paragraph
	}
	if cur != nil {
		seq = append(seq, *cur)
	}
	return seq
}

var blankLineRe = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// Paragraphs splits text on blank lines and normalizes whitespace inside
// each paragraph. Empty paragraphs are dropped.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankLineRe.Split(text, -1) {
		if p = normalizeSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
