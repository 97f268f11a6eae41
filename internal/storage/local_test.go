package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var (
	_ Storage = (*LocalStorage)(nil)
	_ Storage = (*S3Storage)(nil)
)

func TestNewLocalStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")

	s, err := NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	if s.Dir() != dir {
		t.Errorf("Dir() = %v, want %v", s.Dir(), dir)
	}
	for _, sub := range []string{"uploads", "narrations"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil {
			t.Fatalf("%s not created: %v", sub, err)
		}
		if !info.IsDir() {
			t.Errorf("%s: expected directory", sub)
		}
	}
}

func TestLocalStorage_SaveUploadKeepsExtension(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	path, err := s.SaveUpload(ctx, "../../report.final.pdf", bytes.NewReader([]byte("%PDF-1.4")))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	if filepath.Dir(path) != filepath.Join(s.Dir(), "uploads") {
		t.Errorf("upload escaped the uploads dir: %s", path)
	}
	if filepath.Ext(path) != ".pdf" {
		t.Errorf("extension lost: %s", path)
	}
	if !strings.HasPrefix(filepath.Base(path), "report.final_") {
		t.Errorf("unexpected name: %s", path)
	}

	r, err := s.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "%PDF-1.4" {
		t.Errorf("got %q", got)
	}
}

func TestLocalStorage_SaveUploadCancelled(t *testing.T) {
	s := setupTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.SaveUpload(ctx, "a.txt", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLocalStorage_OutputPath(t *testing.T) {
	s := setupTestStorage(t)
	want := filepath.Join(s.Dir(), "narrations", "job.wav")
	if got := s.OutputPath("../job.wav"); got != want {
		t.Errorf("OutputPath() = %v, want %v", got, want)
	}
}

func TestLocalStorage_Remove(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	p1, _ := s.SaveUpload(ctx, "a.txt", strings.NewReader("1"))
	p2, _ := s.SaveUpload(ctx, "b.txt", strings.NewReader("2"))

	if err := s.Remove(ctx, []string{p1, "", filepath.Join(s.Dir(), "missing.txt"), p2}); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	for _, p := range []string{p1, p2} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists", p)
		}
	}
}

func TestLocalStorage_PublishNotConfigured(t *testing.T) {
	s := setupTestStorage(t)
	if _, err := s.Publish(context.Background(), "k", "p"); !errors.Is(err, ErrS3NotConfigured) {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return s
}
