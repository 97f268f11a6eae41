package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dgallion1/narrator/internal/audio"
	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/lang"
	"github.com/dgallion1/narrator/internal/segment"
	"github.com/dgallion1/narrator/internal/tts"
)

// State is a step of a narration run.
type State string

const (
	StateInit       State = "init"
	StateOCR        State = "ocr"
	StateCorrection State = "correction"
	StateSynthesis  State = "synthesis"
	StateAssembled  State = "assembled"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// StageError reports the state a run failed in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Extractor acquires the text of a document.
type Extractor interface {
	Extract(ctx context.Context, path, language string) (string, error)
}

// Corrector fixes recognition errors in one chunk of text.
type Corrector interface {
	Correct(ctx context.Context, text, language, precedingContext string) (string, error)
}

// Segmenter splits text into chunks under budget.
type Segmenter interface {
	Segment(ctx context.Context, text string, budget int, language string) (segment.Sequence, error)
}

// Voices hands out the loaded synthesizer. *tts.Handle implements it.
type Voices interface {
	Get() (tts.Synthesizer, error)
}

// Observer follows the progress of a run. Calls may come from several
// goroutines when chunks are processed in parallel.
type Observer interface {
	StateChanged(state State)
	ChunksPlanned(state State, total, forced int)
	ChunkDone(state State, index int)
	ChunkDropped(index int)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State) {}
func (nopObserver) ChunksPlanned(State, int, int) {}
func (nopObserver) ChunkDone(State, int) {}
func (nopObserver) ChunkDropped(int) {}

// CorrectedChunk pairs an LLM-budget chunk with its corrected text.
type CorrectedChunk struct {
	segment.Chunk
	Fixed string `json:"fixed"`
}

// Request describes one narration.
type Request struct {
	Input     string
	Output    string
	Language  string
	Speaker   string
	LLMBudget int
	TTSBudget int
	Timeout   time.Duration // zero means no limit
	Observer  Observer
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return fault.Input("input", "path is empty")
	}
	if !audio.IsSupportedPath(r.Output) {
		return fault.Input("output", fmt.Sprintf("unsupported audio file %q", r.Output))
	}
	if !lang.IsValid(r.Language) {
		return fault.Input("language", fmt.Sprintf("%q is not supported, choose one of %s", r.Language, strings.Join(lang.Valid(), ", ")))
	}
	if r.LLMBudget <= 0 {
		return fault.Input("llm_budget", fmt.Sprintf("must be positive, got %d", r.LLMBudget))
	}
	if r.TTSBudget <= 0 {
		return fault.Input("tts_budget", fmt.Sprintf("must be positive, got %d", r.TTSBudget))
	}
	return nil
}

// Result summarizes a run. On failure State is StateFailed and FailedStage
// names the state that failed.
type Result struct {
	State         State            `json:"state"`
	FailedStage   State            `json:"failed_stage,omitempty"`
	Output        string           `json:"output,omitempty"`
	Corrected     []CorrectedChunk `json:"-"`
	CorrectedText string           `json:"-"`
	SpeechChunks  int              `json:"speech_chunks"`
	ForcedChunks  int              `json:"forced_chunks"`
	Dropped       []int            `json:"dropped,omitempty"`
	SampleRate    int              `json:"sample_rate,omitempty"`
	AudioDuration time.Duration    `json:"audio_duration,omitempty"`
}

// Options wires the collaborators of a Narrator.
type Options struct {
	Extractor    Extractor
	Corrector    Corrector
	LLMSegmenter Segmenter
	TTSSegmenter Segmenter
	Voices       Voices

	CorrectionConcurrency int // 1 or less corrects chunks one at a time
	CorrectionRPM         int // 0 disables pacing
	SynthesisConcurrency  int // used only when the synthesizer is Concurrent
	ContextWindow         int // trailing runes of the previous chunk shown to the corrector

	Log *slog.Logger
}

// Narrator turns documents into narrated audio: OCR, correction, synthesis,
// assembly.
type Narrator struct {
	extractor     Extractor
	corrector     Corrector
	llmSeg        Segmenter
	ttsSeg        Segmenter
	voices        Voices
	correctN      int
	synthN        int
	limiter       *rate.Limiter
	contextWindow int
	log           *slog.Logger
}

func NewNarrator(opts Options) (*Narrator, error) {
	switch {
	case opts.Extractor == nil:
		return nil, errors.New("narrator: extractor is required")
	case opts.Corrector == nil:
		return nil, errors.New("narrator: corrector is required")
	case opts.LLMSegmenter == nil || opts.TTSSegmenter == nil:
		return nil, errors.New("narrator: segmenters are required")
	case opts.Voices == nil:
		return nil, errors.New("narrator: voices are required")
	}
	n := &Narrator{
		extractor:     opts.Extractor,
		corrector:     opts.Corrector,
		llmSeg:        opts.LLMSegmenter,
		ttsSeg:        opts.TTSSegmenter,
		voices:        opts.Voices,
		correctN:      max(opts.CorrectionConcurrency, 1),
		synthN:        max(opts.SynthesisConcurrency, 1),
		contextWindow: max(opts.ContextWindow, 0),
		log:           opts.Log,
	}
	if opts.CorrectionRPM > 0 {
		n.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.CorrectionRPM)), 1)
	}
	if n.log == nil {
		n.log = slog.New(slog.DiscardHandler)
	}
	return n, nil
}

// Run narrates req.Input into req.Output. Errors from a stage are returned
// as *StageError; request validation errors are returned before the run
// starts.
func (n *Narrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	obs := req.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	log := n.log.With("input", req.Input, "language", req.Language)
	res := &Result{State: StateInit}
	obs.StateChanged(StateInit)

	fail := func(stage State, err error) (*Result, error) {
		res.State = StateFailed
		res.FailedStage = stage
		obs.StateChanged(StateFailed)
		log.Error("narration failed", "stage", stage, "error", err)
		return res, &StageError{Stage: stage, Err: err}
	}
	enter := func(s State) {
		res.State = s
		obs.StateChanged(s)
	}

	enter(StateOCR)
	text, err := n.extractor.Extract(ctx, req.Input, req.Language)
	if err != nil {
		return fail(StateOCR, err)
	}
	log.Info("text acquired", "chars", utf8.RuneCountInString(text))

	enter(StateCorrection)
	corrected, err := n.correct(ctx, text, req, obs, log)
	if err != nil {
		return fail(StateCorrection, err)
	}
	res.Corrected = corrected
	res.CorrectedText = joinFixed(corrected)

	enter(StateSynthesis)
	segs, sampleRate, err := n.synthesize(ctx, res, req, obs, log)
	if err != nil {
		return fail(StateSynthesis, err)
	}

	enter(StateAssembled)
	combined, err := audio.Concat(sampleRate, segs...)
	if err != nil {
		return fail(StateAssembled, err)
	}
	if err := audio.WriteFile(req.Output, combined); err != nil {
		return fail(StateAssembled, err)
	}
	res.Output = req.Output
	res.SampleRate = sampleRate
	res.AudioDuration = combined.Duration()

	enter(StateSucceeded)
	log.Info("narration written", "output", req.Output, "duration", res.AudioDuration,
		"speech_chunks", res.SpeechChunks, "dropped", len(res.Dropped))
	return res, nil
}

func joinFixed(chunks []CorrectedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Fixed
	}
	return strings.Join(parts, segment.ParagraphSeparator)
}

// correct segments text at the LLM budget and corrects every chunk,
// returning them in reading order.
func (n *Narrator) correct(ctx context.Context, text string, req Request, obs Observer, log *slog.Logger) ([]CorrectedChunk, error) {
	seq, err := n.llmSeg.Segment(ctx, text, req.LLMBudget, req.Language)
	if err != nil {
		return nil, err
	}
	obs.ChunksPlanned(StateCorrection, len(seq), seq.ForcedCount())
	log.Info("correcting", "chunks", len(seq), "forced", seq.ForcedCount(), "concurrency", n.correctN)

	out := make([]CorrectedChunk, len(seq))
	one := func(ctx context.Context, i int) error {
		if n.limiter != nil {
			if err := n.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		fixed, err := n.corrector.Correct(ctx, seq[i].Content, req.Language, n.precedingContext(seq, i))
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		out[i] = CorrectedChunk{Chunk: seq[i], Fixed: fixed}
		obs.ChunkDone(StateCorrection, i)
		return nil
	}

	if n.correctN <= 1 {
		for i := range seq {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := one(ctx, i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.correctN)
	for i := range seq {
		g.Go(func() error { return one(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// precedingContext returns the trailing ContextWindow runes of the chunk
// before i, or "" when the window is off.
func (n *Narrator) precedingContext(seq segment.Sequence, i int) string {
	if n.contextWindow == 0 || i == 0 {
		return ""
	}
	prev := []rune(seq[i-1].Content)
	if len(prev) > n.contextWindow {
		prev = prev[len(prev)-n.contextWindow:]
	}
	return strings.TrimSpace(string(prev))
}

// synthesize segments the corrected text at the TTS budget and speaks every
// non-blank chunk in order. Chunks that yield no samples are dropped.
func (n *Narrator) synthesize(ctx context.Context, res *Result, req Request, obs Observer, log *slog.Logger) ([]audio.Segment, int, error) {
	synth, err := n.voices.Get()
	if err != nil {
		return nil, 0, err
	}
	sampleRate := synth.SampleRate()

	seq, err := n.ttsSeg.Segment(ctx, res.CorrectedText, req.TTSBudget, req.Language)
	if err != nil {
		return nil, 0, err
	}
	res.SpeechChunks = len(seq)
	res.ForcedChunks = seq.ForcedCount()
	obs.ChunksPlanned(StateSynthesis, len(seq), seq.ForcedCount())

	samples := make([][]float32, len(seq))
	one := func(ctx context.Context, i int) error {
		text := strings.TrimSpace(seq[i].Content)
		if text != "" {
			s, err := synth.Synthesize(ctx, text, req.Language, req.Speaker)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			samples[i] = s
		}
		obs.ChunkDone(StateSynthesis, i)
		return nil
	}

	if tts.IsConcurrent(synth) && n.synthN > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(n.synthN)
		for i := range seq {
			g.Go(func() error { return one(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
	} else {
		for i := range seq {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
			if err := one(ctx, i); err != nil {
				return nil, 0, err
			}
		}
	}

	var segs []audio.Segment
	for i, s := range samples {
		if len(s) == 0 {
			if strings.TrimSpace(seq[i].Content) != "" {
				log.Warn("synthesis produced no audio, dropping chunk", "chunk", i, "chars", utf8.RuneCountInString(seq[i].Content))
				res.Dropped = append(res.Dropped, i)
				obs.ChunkDropped(i)
			}
			continue
		}
		segs = append(segs, audio.Segment{Samples: s, SampleRate: sampleRate})
	}
	if len(segs) == 0 {
		return nil, 0, fault.ErrNoAudioProduced
	}
	return segs, sampleRate, nil
}
