package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgallion1/narrator/internal/document"
	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/lang"
)

type fakeOCR struct {
	pages []int
	err   error
}

func (f *fakeOCR) RecognizePage(_ context.Context, _ string, page int, _ lang.Language) (string, error) {
	f.pages = append(f.pages, page)
	if f.err != nil {
		return "", f.err
	}
	return "recognized text", nil
}

func TestExtractor_TextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.txt")
	if err := os.WriteFile(path, []byte("Line one.\nLine two.\n\n\nNext paragraph.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := &Extractor{}
	got, err := e.Extract(context.Background(), path, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "Line one.\nLine two.\n\nNext paragraph."; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestExtractor_Errors(t *testing.T) {
	dir := t.TempDir()
	e := &Extractor{}
	ctx := context.Background()

	_, err := e.Extract(ctx, filepath.Join(dir, "sheet.xlsx"), "en")
	if !errors.Is(err, fault.ErrInput) {
		t.Errorf("expected ErrInput for unsupported extension, got %v", err)
	}

	_, err = e.Extract(ctx, filepath.Join(dir, "missing.txt"), "en")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error to propagate, got %v", err)
	}

	_, err = e.Extract(ctx, filepath.Join(dir, "missing.pdf"), "en")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error for pdf, got %v", err)
	}

	_, err = e.Extract(ctx, filepath.Join(dir, "a.txt"), "??")
	var ue *lang.UnsupportedLanguageError
	if !errors.As(err, &ue) {
		t.Errorf("expected UnsupportedLanguageError, got %v", err)
	}
}

func newPDFDoc() *document.Document {
	return &document.Document{Pages: []document.Page{
		{Number: 1, Text: "Text layer."},
		{Number: 2},
		{Number: 3, Text: "More text."},
		{Number: 4, Text: "  "},
	}}
}

func TestExtractor_RecognizesEmptyPages(t *testing.T) {
	ocr := &fakeOCR{}
	e := &Extractor{OCR: ocr}
	doc := newPDFDoc()
	l, _ := lang.Resolve("en")

	if err := e.recognize(context.Background(), "book.pdf", doc, l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ocr.pages) != 2 || ocr.pages[0] != 2 || ocr.pages[1] != 4 {
		t.Errorf("expected pages [2 4] recognized, got %v", ocr.pages)
	}
	want := "Text layer.\n\nrecognized text\n\nMore text.\n\nrecognized text"
	if doc.Text() != want {
		t.Errorf("expected %q, got %q", want, doc.Text())
	}
}

func TestExtractor_ForceOCR(t *testing.T) {
	ocr := &fakeOCR{}
	e := &Extractor{OCR: ocr, ForceOCR: true}
	l, _ := lang.Resolve("tr")

	if err := e.recognize(context.Background(), "book.pdf", newPDFDoc(), l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ocr.pages) != 4 {
		t.Errorf("expected every page recognized, got %v", ocr.pages)
	}
}

func TestExtractor_OCRFailureAndDisabled(t *testing.T) {
	l, _ := lang.Resolve("en")
	boom := errors.New("tesseract crashed")

	e := &Extractor{OCR: &fakeOCR{err: boom}}
	if err := e.recognize(context.Background(), "book.pdf", newPDFDoc(), l); !errors.Is(err, boom) {
		t.Errorf("expected OCR error to propagate, got %v", err)
	}

	doc := newPDFDoc()
	e = &Extractor{}
	if err := e.recognize(context.Background(), "book.pdf", doc, l); err != nil {
		t.Errorf("expected no error with OCR disabled, got %v", err)
	}
	if doc.Text() != "Text layer.\n\nMore text." {
		t.Errorf("expected text layer only, got %q", doc.Text())
	}
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.txt", "b.MD", "c.markdown", "d.html", "e.htm", "f.pdf", "g.docx"} {
		if _, err := ForFile(name); err != nil {
			t.Errorf("ForFile(%q): unexpected error: %v", name, err)
		}
		if !IsSupportedExtension(name) {
			t.Errorf("IsSupportedExtension(%q) = false", name)
		}
	}
	if _, err := ForFile("data.csv"); !errors.Is(err, fault.ErrInput) {
		t.Errorf("expected ErrInput for csv, got %v", err)
	}
}
