package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/narrator/internal/audio"
	"github.com/dgallion1/narrator/internal/config"
	"github.com/dgallion1/narrator/internal/fault"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvConfigFile, "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LOG_FILE", "NARRATOR_MODEL", "TTS_ENGINE", "TTS_COMMAND"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	narrateCmd.Flags().VisitAll(reset)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "narrator version dev")
}

func TestLanguagesCmd(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "languages")
	require.NoError(t, err)
	assert.Contains(t, out, "en     English")
	assert.Contains(t, out, "Turkish")
}

func TestNarrateCmd_Errors(t *testing.T) {
	isolateEnv(t)
	doc := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Some text."), 0o644))

	_, err := execute(t, "narrate")
	assert.Error(t, err)

	_, err = execute(t, "narrate", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorContains(t, err, "document not found")

	_, err = execute(t, "narrate", doc, "-o", "out.mp3")
	assert.ErrorIs(t, err, fault.ErrInput)

	_, err = execute(t, "narrate", doc, "-m", "gpt-4o", "-o", filepath.Join(t.TempDir(), "out.wav"))
	assert.ErrorIs(t, err, config.ErrMissingCredential)

	_, err = execute(t, "narrate", doc, "--max-characters-tts", "0")
	assert.ErrorIs(t, err, config.ErrInvalidBudget)
}

func TestNarrateCmd_EndToEnd(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3.1", body.Model)
		for _, m := range body.Messages {
			prompts = append(prompts, m.Content)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 0, "model": "llama3.1",
			"choices": []any{map[string]any{
				"index": 0, "finish_reason": "stop",
				"message": map[string]any{"role": "assistant", "content": "Hello there, reader."},
			}},
		})
	}))
	defer srv.Close()

	script := filepath.Join(dir, "tts.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat >/dev/null\nprintf '\\000\\100\\000\\300'\n"), 0o755))

	t.Setenv("OLLAMA_URL", srv.URL+"/v1/")
	t.Setenv("TTS_ENGINE", "command")
	t.Setenv("TTS_COMMAND", script+" {language}")
	t.Setenv("TTS_SAMPLE_RATE", "16000")
	t.Setenv("TESSERACT_PATH", filepath.Join(dir, "no-tesseract"))

	doc := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Helo there, raeder."), 0o644))
	out := filepath.Join(dir, "audio", "notes.wav")

	stdout, err := execute(t, "narrate", doc, "-o", out, "-l", "en", "-m", "ollama/llama3.1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+out)
	assert.Contains(t, strings.Join(prompts, "\n"), "Helo there, raeder.")

	seg, err := audio.ReadWAV(out)
	require.NoError(t, err)
	assert.Equal(t, 16000, seg.SampleRate)
	require.Len(t, seg.Samples, 2)
	assert.InDelta(t, 0.5, seg.Samples[0], 1e-3)
	assert.InDelta(t, -0.5, seg.Samples[1], 1e-3)
}
