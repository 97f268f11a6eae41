package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/narrator/internal/audio"
	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/llm"
	"github.com/dgallion1/narrator/internal/pipeline"
)

var narrateCmd = &cobra.Command{
	Use:   "narrate <document>",
	Short: "Narrate a document into a WAV file",
	Long: `Narrate extracts the text of a PDF, DOCX, HTML, Markdown or plain text
document, corrects it chunk by chunk with the selected model and writes the
synthesized speech to a single audio file.`,
	Args: cobra.ExactArgs(1),
	RunE: runNarrate,
}

var (
	output           string
	language         string
	model            string
	speaker          string
	maxCharactersLLM int
	maxCharactersTTS int
	maxTokens        int
)

func init() {
	narrateCmd.Flags().StringVarP(&output, "output", "o", "output.wav", "output audio path (.wav, .pcm or .raw)")
	narrateCmd.Flags().StringVarP(&language, "language", "l", "en", "document language")
	narrateCmd.Flags().StringVarP(&model, "model", "m", "ollama/llama3.1", "correction model, e.g. gpt-4o, claude-3-5-haiku-latest, ollama/llama3.1")
	narrateCmd.Flags().StringVar(&speaker, "speaker", "Asya Anara", "speaker or voice name")
	narrateCmd.Flags().IntVar(&maxCharactersLLM, "max-characters-llm", 1000, "correction chunk budget")
	narrateCmd.Flags().IntVar(&maxCharactersTTS, "max-characters-tts", 250, "speech chunk budget")
	narrateCmd.Flags().IntVar(&maxTokens, "max-tokens", 4000, "max tokens per model response")

	rootCmd.AddCommand(narrateCmd)
}

// applyFlags overrides the loaded configuration with flags given on the
// command line.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("language") {
		cfg.Language = language
	}
	if flags.Changed("model") {
		cfg.Model = model
	}
	if flags.Changed("speaker") {
		cfg.Speaker = speaker
	}
	if flags.Changed("max-characters-llm") {
		cfg.MaxCharactersLLM = maxCharactersLLM
	}
	if flags.Changed("max-characters-tts") {
		cfg.MaxCharactersTTS = maxCharactersTTS
	}
	if flags.Changed("max-tokens") {
		cfg.MaxTokens = maxTokens
	}
}

func runNarrate(cmd *cobra.Command, args []string) error {
	applyFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	input, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("document not found: %s", args[0])
	}
	if !audio.IsSupportedPath(output) {
		return fault.Input("output", fmt.Sprintf("unsupported audio format %q", filepath.Ext(output)))
	}
	if err := cfg.RequireCredentialsFor(cfg.Model); err != nil {
		return err
	}

	log, closeLog, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	voices := pipeline.NewVoices(cfg)
	defer voices.Close()

	stats := llm.NewLLMStats(0)
	factory, err := pipeline.NewFactory(cfg, voices, stats, log)
	if err != nil {
		return err
	}
	n, err := factory.Narrator(cfg.Model)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := n.Run(ctx, factory.Request(input, output))
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}

	cmd.Printf("wrote %s (%.1fs of audio, %d speech chunks)\n", res.Output, res.AudioDuration.Seconds(), res.SpeechChunks)
	if len(res.Dropped) > 0 {
		cmd.Printf("warning: %d chunks produced no audio: %v\n", len(res.Dropped), res.Dropped)
	}
	if res.ForcedChunks > 0 {
		cmd.Printf("warning: %d chunks exceeded their budget\n", res.ForcedChunks)
	}
	snap := stats.Snapshot()
	log.Info("model usage", "calls", snap.Count, "failures", snap.Failures)
	return nil
}
