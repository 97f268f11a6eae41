// Package ocr recognizes text in PDF pages that carry no text layer by
// rendering them with pdftoppm and reading them with tesseract.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/lang"
)

const (
	DefaultTesseract = "tesseract"
	DefaultPdftoppm  = "pdftoppm"
	DefaultDPI       = 300
)

// Tesseract runs the external OCR tools.
type Tesseract struct {
	binary   string
	pdftoppm string
	dpi      int
	log      *slog.Logger
}

// Options configure Tesseract. Zero values take the defaults.
type Options struct {
	Binary   string
	Pdftoppm string
	DPI      int
	Log      *slog.Logger
}

func New(opts Options) *Tesseract {
	if opts.Binary == "" {
		opts.Binary = DefaultTesseract
	}
	if opts.Pdftoppm == "" {
		opts.Pdftoppm = DefaultPdftoppm
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	return &Tesseract{binary: opts.Binary, pdftoppm: opts.Pdftoppm, dpi: opts.DPI, log: opts.Log}
}

// Available reports an error when either tool is missing from PATH.
func (t *Tesseract) Available() error {
	for _, bin := range []string{t.pdftoppm, t.binary} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("ocr: %s not found: %w", bin, err)
		}
	}
	return nil
}

// RecognizePage renders one 1-based page of the PDF and returns its text.
func (t *Tesseract) RecognizePage(ctx context.Context, pdfPath string, page int, language lang.Language) (string, error) {
	if page < 1 {
		return "", fault.Input("page", "must be 1 or greater")
	}
	if !lang.SupportsOCR(language) {
		return "", fault.Input("language", "no OCR model for "+language.Code)
	}

	dir, err := os.MkdirTemp("", "narrator-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	n := strconv.Itoa(page)
	if _, err := t.run(ctx, t.pdftoppm,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(t.dpi),
		"-png", "-singlefile",
		pdfPath, prefix,
	); err != nil {
		return "", fault.Backend("pdftoppm", "render page "+n, err)
	}

	out, err := t.run(ctx, t.binary, prefix+".png", "stdout", "-l", lang.Tesseract(language))
	if err != nil {
		return "", fault.Backend("tesseract", "recognize page "+n, err)
	}
	text := Reflow(string(out))
	t.log.Debug("page recognized", "page", page, "chars", len(text))
	return text, nil
}

func (t *Tesseract) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, fault.Truncate(msg, 300))
		}
		return nil, err
	}
	return out, nil
}

// Reflow joins OCR lines into paragraphs. Blank lines separate paragraphs;
// a line ending in a hyphen is joined to the next without a space.
func Reflow(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\f", "\n\n")

	var paragraphs []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			paragraphs = append(paragraphs, cur.String())
			cur.Reset()
		}
	}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			flush()
			continue
		}
		s := cur.String()
		switch {
		case s == "":
		case strings.HasSuffix(s, "-") && len(s) > 1 && s[len(s)-2] != ' ':
			cur.Reset()
			cur.WriteString(strings.TrimSuffix(s, "-"))
		default:
			cur.WriteByte(' ')
		}
		cur.WriteString(line)
	}
	flush()
	return strings.Join(paragraphs, "\n\n")
}
