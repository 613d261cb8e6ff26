// Package storage provides per-job scratch storage for render artifacts and
// optional S3 delivery of finished videos.
// It defines the Storage interface (port) and implementations for local disk
// and S3 storage.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for scratch and persistent file storage.
// Every render owns exactly one scratch directory, keyed by its job ID, so
// concurrent renders never share a path.
type Storage interface {
	// CreateScratch creates the scratch directory for jobID and returns its
	// path. It fails if the directory already exists.
	CreateScratch(ctx context.Context, jobID string) (dir string, err error)

	// SaveTemp writes data to dir/name and returns the file path.
	SaveTemp(ctx context.Context, dir, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a scratch file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupScratch removes a scratch directory and everything in it.
	// It runs to completion even when ctx is already cancelled, since it is
	// called on the error paths of cancelled renders.
	CleanupScratch(ctx context.Context, dir string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)

	// S3Enabled reports whether UploadToS3 can succeed.
	S3Enabled() bool
}
