package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/narrator/internal/config"
	"github.com/dgallion1/narrator/internal/llm"
	"github.com/dgallion1/narrator/internal/ocr"
	"github.com/dgallion1/narrator/internal/parser"
	"github.com/dgallion1/narrator/internal/segment"
	"github.com/dgallion1/narrator/internal/tts"
)

// DefaultSynthesisConcurrency bounds parallel calls to a Concurrent synthesizer.
const DefaultSynthesisConcurrency = 4

// Factory builds narrators from configuration. The extractor, prompts,
// statistics and speech handle are shared by every narrator it builds.
type Factory struct {
	cfg       *config.Config
	extractor *parser.Extractor
	prompts   *llm.Prompts
	stats     *llm.LLMStats
	voices    Voices
	log       *slog.Logger
}

func NewFactory(cfg *config.Config, voices Voices, stats *llm.LLMStats, log *slog.Logger) (*Factory, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	prompts, err := llm.LoadPrompts(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}

	extractor := &parser.Extractor{
		ForceOCR:          cfg.ForceOCR,
		FallbackPdftotext: cfg.PDFFallbackPdftotext,
		Log:               log,
	}
	tess := ocr.New(ocr.Options{
		Binary:   cfg.TesseractPath,
		Pdftoppm: cfg.PdftoppmPath,
		DPI:      cfg.OCRDPI,
		Log:      log,
	})
	if err := tess.Available(); err != nil {
		log.Warn("page OCR disabled", "error", err)
	} else {
		extractor.OCR = tess
	}

	return &Factory{
		cfg:       cfg,
		extractor: extractor,
		prompts:   prompts,
		stats:     stats,
		voices:    voices,
		log:       log,
	}, nil
}

// NewVoices returns the init-once speech handle described by cfg.
func NewVoices(cfg *config.Config) *tts.Handle {
	return tts.NewHandle(func() (tts.Synthesizer, error) {
		return tts.New(tts.Options{
			Engine:     cfg.TTSEngine,
			Model:      cfg.TTSModel,
			Voice:      cfg.TTSVoice,
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Command:    cfg.TTSCommandArgs(),
			SampleRate: cfg.TTSSampleRate,
		})
	})
}

// Narrator builds a narrator that corrects with model, or the configured
// model when empty. Missing credentials fail with config.ErrMissingCredential
// before anything is built.
func (f *Factory) Narrator(model string) (*Narrator, error) {
	if model == "" {
		model = f.cfg.Model
	}
	if err := f.cfg.RequireCredentialsFor(model); err != nil {
		return nil, err
	}

	log := f.log.With("model", model)
	backend, err := llm.NewBackend(llm.BackendConfig{
		Model:        model,
		OpenAIKey:    f.cfg.OpenAIAPIKey,
		AnthropicKey: f.cfg.AnthropicAPIKey,
		OpenAIURL:    f.cfg.OpenAIBaseURL,
		AnthropicURL: f.cfg.AnthropicURL,
		OllamaURL:    f.cfg.OllamaURL,
		Timeout:      f.cfg.LLMTimeout.Std(),
		MaxRetries:   llm.MaxRetries,
		Log:          log,
		Stats:        f.stats,
	})
	if err != nil {
		return nil, err
	}

	corrector, err := llm.NewCorrector(backend, llm.CorrectorOptions{
		Prompts:   f.prompts,
		Contract:  f.cfg.CorrectionContract,
		MaxTokens: f.cfg.MaxTokens,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	splitter, err := llm.NewChunkSplitter(backend, f.prompts, f.cfg.MaxTokens, log)
	if err != nil {
		return nil, err
	}

	measure, ok := segment.MeasureByName(f.cfg.BudgetUnit)
	if !ok {
		return nil, fmt.Errorf("unknown budget unit %q", f.cfg.BudgetUnit)
	}

	return NewNarrator(Options{
		Extractor: f.extractor,
		Corrector: corrector,
		LLMSegmenter: segment.New(segment.Options{
			Kind: segment.BudgetLLM, Measure: measure, Model: splitter.For(budgetUnitName(f.cfg.BudgetUnit), "a language model"), Log: log,
		}),
		TTSSegmenter: segment.New(segment.Options{
			Kind: segment.BudgetTTS, Model: splitter, Log: log,
		}),
		Voices:                f.voices,
		CorrectionConcurrency: f.cfg.CorrectionConcurrency,
		CorrectionRPM:         f.cfg.CorrectionRPM,
		SynthesisConcurrency:  DefaultSynthesisConcurrency,
		ContextWindow:         f.cfg.ContextWindow,
		Log:                   log,
	})
}

// Request fills a request from the configured defaults.
func (f *Factory) Request(input, output string) Request {
	return Request{
		Input:     input,
		Output:    output,
		Language:  f.cfg.Language,
		Speaker:   f.cfg.Speaker,
		LLMBudget: f.cfg.MaxCharactersLLM,
		TTSBudget: f.cfg.MaxCharactersTTS,
		Timeout:   f.cfg.RunTimeout.Std(),
	}
}

// budgetUnitName names a BUDGET_UNIT value in prompt wording.
func budgetUnitName(unit string) string {
	if strings.EqualFold(unit, "tokens") {
		return "tokens"
	}
	return "characters"
}
