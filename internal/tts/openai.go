package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/dgallion1/narrator/internal/audio"
	"github.com/dgallion1/narrator/internal/fault"
)

const (
	// OpenAISampleRate is the rate of the speech endpoint's raw PCM output.
	OpenAISampleRate = 24000

	DefaultOpenAIModel = "gpt-4o-mini-tts"
	DefaultOpenAIVoice = "alloy"
)

var openAIVoices = []string{
	"alloy", "ash", "ballad", "coral", "echo", "fable",
	"nova", "onyx", "sage", "shimmer", "verse",
}

// OpenAISynthesizer calls the OpenAI speech endpoint for raw 24 kHz PCM.
type OpenAISynthesizer struct {
	client openai.Client
	model  string
	voice  string
}

type OpenAISynthesizerOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
}

func NewOpenAISynthesizer(opts OpenAISynthesizerOptions) *OpenAISynthesizer {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	voice := strings.ToLower(opts.Voice)
	if !slices.Contains(openAIVoices, voice) {
		voice = DefaultOpenAIVoice
	}
	return &OpenAISynthesizer{
		client: openai.NewClient(reqOpts...),
		model:  model,
		voice:  voice,
	}
}

func (s *OpenAISynthesizer) SampleRate() int { return OpenAISampleRate }

func (s *OpenAISynthesizer) Concurrent() bool { return true }

func (s *OpenAISynthesizer) Close() error { return nil }

// Synthesize speaks text. The speaker is used when it names an OpenAI voice,
// otherwise the configured voice is used. The endpoint infers the language
// from the text.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, _, speaker string) ([]float32, error) {
	voice := s.voice
	if v := strings.ToLower(strings.TrimSpace(speaker)); slices.Contains(openAIVoices, v) {
		voice = v
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fault.Backend("openai-tts", "speech", fmt.Errorf("status %d: %w", apiErr.StatusCode, err))
		}
		return nil, fault.Backend("openai-tts", "speech", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Backend("openai-tts", "speech", fmt.Errorf("read audio: %w", err))
	}
	return audio.DecodePCM16LE(raw), nil
}
