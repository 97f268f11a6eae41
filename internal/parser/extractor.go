package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/narrator/internal/document"
	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/lang"
)

// PageRecognizer reads the text of one rendered PDF page.
type PageRecognizer interface {
	RecognizePage(ctx context.Context, pdfPath string, page int, language lang.Language) (string, error)
}

// Extractor acquires the text of a document on disk. PDF pages without a
// text layer are passed to OCR when a recognizer is configured.
type Extractor struct {
	OCR               PageRecognizer // nil disables recognition
	ForceOCR          bool           // recognize every PDF page, ignoring the text layer
	FallbackPdftotext bool
	Log               *slog.Logger
}

// Extract returns the full text of the document at path with pages and
// paragraphs separated by blank lines.
func (e *Extractor) Extract(ctx context.Context, path, language string) (string, error) {
	doc, err := e.Document(ctx, path, language)
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// Document parses the file at path into pages.
func (e *Extractor) Document(ctx context.Context, path, language string) (*document.Document, error) {
	l, err := lang.Resolve(language)
	if err != nil {
		return nil, &fault.InputError{Field: "language", Reason: "unrecognized code " + language, Err: err}
	}
	p, err := ForFile(path)
	if err != nil {
		return nil, err
	}

	if pdf, ok := p.(*PDFParser); ok {
		pdf.FallbackPdftotext = e.FallbackPdftotext
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		doc, err := pdf.ParseFile(ctx, path, filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if err := e.recognize(ctx, path, doc, l); err != nil {
			return nil, err
		}
		return doc, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Parse(f, filepath.Base(path))
}

func (e *Extractor) recognize(ctx context.Context, path string, doc *document.Document, l lang.Language) error {
	pages := doc.EmptyPages()
	if e.ForceOCR {
		pages = pages[:0]
		for _, p := range doc.Pages {
			pages = append(pages, p.Number)
		}
	}
	if len(pages) == 0 {
		return nil
	}

	log := e.logger().With("path", path, "language", l.Code)
	if e.OCR == nil {
		log.Warn("pdf pages without text layer and OCR disabled", "pages", len(pages))
		return nil
	}
	if !lang.SupportsOCR(l) {
		return fault.Input("language", "no OCR model for "+l.Code)
	}

	for _, n := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := e.OCR.RecognizePage(ctx, path, n, l)
		if err != nil {
			return fmt.Errorf("ocr page %d: %w", n, err)
		}
		doc.SetPage(n, strings.TrimSpace(text))
		log.Debug("recognized page", "page", n, "chars", len(text))
	}
	log.Info("ocr complete", "pages", len(pages))
	return nil
}

func (e *Extractor) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.New(slog.DiscardHandler)
}
