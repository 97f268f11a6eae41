package llm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompts_Builtin(t *testing.T) {
	p, err := LoadPrompts("")
	require.NoError(t, err)

	system, user, err := p.Correction(PromptData{Language: "Turkish", Content: "metin"})
	require.NoError(t, err)
	assert.Contains(t, system, "The text is in Turkish.")
	assert.True(t, strings.HasPrefix(user, "Correct this text:"))
	assert.Contains(t, user, "<text>\nmetin\n</text>")

	system, _, err = p.Split(PromptData{Language: "English", Budget: 250, Unit: "characters", Audience: "a speech engine", Structured: true, Content: "x"})
	require.NoError(t, err)
	assert.Contains(t, system, "pieces for a speech engine")
	assert.Contains(t, system, "at most 250 characters")
	assert.Contains(t, system, `"chunks"`)
}

func TestLoadPrompts_Override(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, correctSystemFile), []byte("Custom prompt for {{.Language}}."), 0o644))

	p, err := LoadPrompts(dir)
	require.NoError(t, err)

	system, user, err := p.Correction(PromptData{Language: "German", Content: "Text"})
	require.NoError(t, err)
	assert.Equal(t, "Custom prompt for German.", system)
	assert.Contains(t, user, "Text")
}

func TestLoadPrompts_BadOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, splitUserFile), []byte("{{.Content"), 0o644))

	_, err := LoadPrompts(dir)
	assert.Error(t, err)
}
