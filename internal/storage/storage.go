// Package storage keeps uploaded documents and finished narrations on local
// disk and optionally publishes narrations to S3.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrS3NotConfigured is returned by Publish on storage without a bucket.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// Storage is where the service puts uploads and narrations.
type Storage interface {
	// SaveUpload stores an uploaded document and returns its local path.
	// The extension of name is preserved so the parser can be chosen from it.
	SaveUpload(ctx context.Context, name string, data io.Reader) (path string, err error)

	// OutputPath returns the local path a narration with the given file name
	// should be written to.
	OutputPath(name string) string

	// Open reads a stored file. The caller closes the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes stored files, continuing past individual failures.
	Remove(ctx context.Context, paths []string) error

	// Publish uploads the file at path under key and returns its URL.
	// Returns ErrS3NotConfigured when there is no remote store.
	Publish(ctx context.Context, key, path string) (url string, err error)
}
