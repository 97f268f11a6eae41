package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/lang"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestReflow(t *testing.T) {
	raw := "The little prince  went\nto the exam-\nple garden.\n\n\nOh! That is\nfunny!\f Next page line.\n"
	want := "The little prince went to the example garden.\n\nOh! That is funny!\n\nNext page line."
	assert.Equal(t, want, Reflow(raw))
	assert.Equal(t, "", Reflow("\n \n\t\n"))
	assert.Equal(t, "a - b", Reflow("a -\nb"))
}

func TestRecognizePage(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")

	pdftoppm := writeScript(t, dir, "pdftoppm", `for a; do last=$a; done
: > "$last.png"
`)
	tesseract := writeScript(t, dir, "tesseract", `[ -f "$1" ] || exit 3
echo "$@" > `+argsFile+`
printf 'Hayat tarz-\nlari da benzer.\n\nJared Diamond\n'
`)

	tr, err := lang.Resolve("tr")
	require.NoError(t, err)

	tess := New(Options{Binary: tesseract, Pdftoppm: pdftoppm})
	require.NoError(t, tess.Available())

	text, err := tess.RecognizePage(context.Background(), filepath.Join(dir, "in.pdf"), 2, tr)
	require.NoError(t, err)
	assert.Equal(t, "Hayat tarzlari da benzer.\n\nJared Diamond", text)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(args)), "stdout -l tur"), "args: %s", args)
}

func TestRecognizePage_ToolFailure(t *testing.T) {
	dir := t.TempDir()
	pdftoppm := writeScript(t, dir, "pdftoppm", "echo 'Syntax Error: broken file' >&2\nexit 1\n")
	l, err := lang.Resolve("en")
	require.NoError(t, err)

	tess := New(Options{Binary: "true", Pdftoppm: pdftoppm})
	_, err = tess.RecognizePage(context.Background(), "missing.pdf", 1, l)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrBackend))
	assert.Contains(t, err.Error(), "broken file")
}

func TestRecognizePage_RejectsInput(t *testing.T) {
	tess := New(Options{})
	ko, err := lang.Resolve("ko")
	require.NoError(t, err)

	_, err = tess.RecognizePage(context.Background(), "x.pdf", 0, ko)
	assert.True(t, errors.Is(err, fault.ErrInput))

	haw, err := lang.Resolve("haw")
	require.NoError(t, err)
	_, err = tess.RecognizePage(context.Background(), "x.pdf", 1, haw)
	assert.True(t, errors.Is(err, fault.ErrInput))
}

func TestAvailable_MissingBinary(t *testing.T) {
	tess := New(Options{Binary: "narrator-no-such-binary", Pdftoppm: "narrator-no-such-pdftoppm"})
	assert.Error(t, tess.Available())
}
