// Package config loads narrator settings from defaults, an optional TOML file
// and the environment, in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"

	"github.com/dgallion1/narrator/internal/llm"
)

var (
	// ErrMissingCredential is returned when the selected backend's API key is not set.
	ErrMissingCredential = errors.New("config: missing credential")
	// ErrInvalidBudget is returned for a non-positive segmentation budget.
	ErrInvalidBudget = errors.New("config: budget must be positive")
)

// EnvConfigFile names the TOML file loaded before the environment.
const EnvConfigFile = "NARRATOR_CONFIG"

// Duration is a time.Duration that decodes from "90s"-style strings in both
// the environment and TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) EnvDecode(val string) error {
	return d.UnmarshalText([]byte(val))
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all settings for the CLI and the service.
type Config struct {
	// Server
	Port           int      `env:"PORT, overwrite, default=8090" toml:"port" validate:"min=1,max=65535"`
	APIKey         string   `env:"NARRATOR_API_KEY, overwrite" toml:"api_key" json:"-"`
	WorkerCount    int      `env:"WORKER_COUNT, overwrite, default=2" toml:"worker_count" validate:"min=1"`
	MaxQueueSize   int      `env:"MAX_QUEUE_SIZE, overwrite, default=100" toml:"max_queue_size" validate:"min=1"`
	JobTTL         Duration `env:"JOB_TTL, overwrite, default=1h" toml:"job_ttl"`
	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES, overwrite, default=20971520" toml:"max_upload_bytes" validate:"min=1"`
	Models         []string `env:"NARRATOR_MODELS, overwrite, default=gpt-4o-mini,ollama/llama3.1,gpt-4o" toml:"models"`

	// Run
	Model      string   `env:"NARRATOR_MODEL, overwrite, default=ollama/llama3.1" toml:"model" validate:"required"`
	Language   string   `env:"NARRATOR_LANGUAGE, overwrite, default=en" toml:"language" validate:"required"`
	Speaker    string   `env:"NARRATOR_SPEAKER, overwrite, default=Asya Anara" toml:"speaker"`
	RunTimeout Duration `env:"RUN_TIMEOUT, overwrite, default=1h" toml:"run_timeout"`

	// Segmentation
	MaxCharactersLLM int    `env:"MAX_CHARACTERS_LLM, overwrite, default=1000" toml:"max_characters_llm"`
	MaxCharactersTTS int    `env:"MAX_CHARACTERS_TTS, overwrite, default=250" toml:"max_characters_tts"`
	BudgetUnit       string `env:"BUDGET_UNIT, overwrite, default=chars" toml:"budget_unit" validate:"oneof=chars tokens"`

	// Correction backend
	OpenAIAPIKey          string   `env:"OPENAI_API_KEY, overwrite" toml:"openai_api_key" json:"-"`
	AnthropicAPIKey       string   `env:"ANTHROPIC_API_KEY, overwrite" toml:"anthropic_api_key" json:"-"`
	OpenAIBaseURL         string   `env:"OPENAI_BASE_URL, overwrite" toml:"openai_base_url" validate:"omitempty,url"`
	AnthropicURL          string   `env:"ANTHROPIC_URL, overwrite" toml:"anthropic_url" validate:"omitempty,url"`
	OllamaURL             string   `env:"OLLAMA_URL, overwrite, default=http://localhost:11434/v1" toml:"ollama_url" validate:"omitempty,url"`
	MaxTokens             int      `env:"MAX_TOKENS, overwrite, default=4000" toml:"max_tokens" validate:"min=1"`
	CorrectionContract    string   `env:"CORRECTION_CONTRACT, overwrite, default=envelope" toml:"correction_contract" validate:"oneof=envelope structured"`
	CorrectionConcurrency int      `env:"CORRECTION_CONCURRENCY, overwrite, default=1" toml:"correction_concurrency" validate:"min=1"`
	CorrectionRPM         int      `env:"CORRECTION_RPM, overwrite" toml:"correction_rpm" validate:"min=0"`
	ContextWindow         int      `env:"CONTEXT_WINDOW, overwrite" toml:"context_window" validate:"min=0"`
	LLMTimeout            Duration `env:"LLM_TIMEOUT, overwrite, default=2m" toml:"llm_timeout"`
	PromptsDir            string   `env:"PROMPTS_DIR, overwrite" toml:"prompts_dir"`

	// Speech
	TTSEngine     string `env:"TTS_ENGINE, overwrite, default=openai" toml:"tts_engine" validate:"oneof=openai command"`
	TTSModel      string `env:"TTS_MODEL, overwrite" toml:"tts_model"`
	TTSVoice      string `env:"TTS_VOICE, overwrite" toml:"tts_voice"`
	TTSCommand    string `env:"TTS_COMMAND, overwrite" toml:"tts_command" validate:"required_if=TTSEngine command"`
	TTSSampleRate int    `env:"TTS_SAMPLE_RATE, overwrite, default=22050" toml:"tts_sample_rate" validate:"min=1"`

	// OCR
	TesseractPath        string `env:"TESSERACT_PATH, overwrite, default=tesseract" toml:"tesseract_path"`
	PdftoppmPath         string `env:"PDFTOPPM_PATH, overwrite, default=pdftoppm" toml:"pdftoppm_path"`
	OCRDPI               int    `env:"OCR_DPI, overwrite, default=300" toml:"ocr_dpi" validate:"min=72,max=1200"`
	ForceOCR             bool   `env:"FORCE_OCR, overwrite" toml:"force_ocr"`
	PDFFallbackPdftotext bool   `env:"PDF_FALLBACK_PDFTOTEXT, overwrite, default=true" toml:"pdf_fallback_pdftotext"`

	// Storage
	OutputDir          string `env:"OUTPUT_DIR, overwrite, default=/tmp/narrator" toml:"output_dir"`
	S3Bucket           string `env:"S3_BUCKET, overwrite" toml:"s3_bucket"`
	S3Region           string `env:"S3_REGION, overwrite" toml:"s3_region"`
	S3Endpoint         string `env:"S3_ENDPOINT, overwrite" toml:"s3_endpoint" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID, overwrite" toml:"aws_access_key_id" json:"-"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY, overwrite" toml:"aws_secret_access_key" json:"-"`

	// Logging
	LogFormat string `env:"LOG_FORMAT, overwrite, default=json" toml:"log_format" validate:"oneof=json text"`
	LogLevel  string `env:"LOG_LEVEL, overwrite, default=info" toml:"log_level"`
	LogFile   string `env:"LOG_FILE, overwrite" toml:"log_file"`
}

// Load builds a Config from defaults, the TOML file at path (or the file
// named by NARRATOR_CONFIG when path is empty) and the environment, then
// validates it. A missing file named explicitly is an error.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks budgets and field constraints.
func (c *Config) Validate() error {
	if c.MaxCharactersLLM <= 0 || c.MaxCharactersTTS <= 0 {
		return fmt.Errorf("%w: llm=%d tts=%d", ErrInvalidBudget, c.MaxCharactersLLM, c.MaxCharactersTTS)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RequireCredentials checks that the key for the configured correction model
// is present, and the OpenAI key when speech runs through OpenAI. Ollama
// needs no key.
func (c *Config) RequireCredentials() error {
	return c.RequireCredentialsFor(c.Model)
}

// RequireCredentialsFor is RequireCredentials for an explicit model name.
func (c *Config) RequireCredentialsFor(model string) error {
	provider, _ := llm.Route(model)
	switch provider {
	case llm.ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for model %q", ErrMissingCredential, model)
		}
	case llm.ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY is required for model %q", ErrMissingCredential, model)
		}
	}
	if c.TTSEngine == "openai" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is required for openai speech", ErrMissingCredential)
	}
	return nil
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// TTSCommandArgs splits TTSCommand on whitespace.
func (c *Config) TTSCommandArgs() []string {
	return strings.Fields(c.TTSCommand)
}

// NewLogger builds a slog logger writing to w, and also to LogFile when set.
// The returned close func releases the log file.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, func() error, error) {
	closeFn := func() error { return nil }
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) // #nosec G304
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(w, f)
		closeFn = f.Close
	}

	opts := &slog.HandlerOptions{Level: ParseLogLevel(c.LogLevel)}
	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler), closeFn, nil
}

// String returns a summary of the config with secrets left out.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Model: %s, Language: %s, MaxCharactersLLM: %d, MaxCharactersTTS: %d, BudgetUnit: %s, TTSEngine: %s, WorkerCount: %d, OutputDir: %s, S3Bucket: %s, LogFormat: %s, LogLevel: %s}",
		c.Port, c.Model, c.Language, c.MaxCharactersLLM, c.MaxCharactersTTS, c.BudgetUnit,
		c.TTSEngine, c.WorkerCount, c.OutputDir, c.S3Bucket, c.LogFormat, c.LogLevel,
	)
}

// ParseLogLevel converts a level name to slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
