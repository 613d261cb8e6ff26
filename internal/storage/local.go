package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Static errors for local storage.
var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrInvalidJobID is returned for job IDs that are empty or contain path elements.
	ErrInvalidJobID = errors.New("invalid job ID")
	// ErrOutsideRoot is returned when a path does not belong to the storage root.
	ErrOutsideRoot = errors.New("path is outside the storage root")
)

// LocalStorage implements the Storage interface using local disk.
// Scratch directories live directly under a configurable root. It does not
// support S3 operations unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter specifies the root of all scratch directories.
// If tempDir is empty, a "beatloop" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "beatloop")
	}

	abs, err := filepath.Abs(tempDir)
	if err != nil {
		return nil, fmt.Errorf("resolve temp directory: %w", err)
	}

	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: abs}, nil
}

// TempDir returns the scratch root path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// CreateScratch creates <root>/<jobID>. The directory must not exist yet.
func (s *LocalStorage) CreateScratch(ctx context.Context, jobID string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if jobID == "" || jobID != filepath.Base(jobID) || jobID == "." || jobID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}

	dir := filepath.Join(s.tempDir, jobID)
	if err := os.Mkdir(dir, 0750); err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	return dir, nil
}

// SaveTemp writes data to dir/name. The file must not exist yet.
func (s *LocalStorage) SaveTemp(ctx context.Context, dir, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := s.checkInside(dir); err != nil {
		return "", err
	}

	fileName := filepath.Join(dir, filepath.Base(name))
	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600) // #nosec G304 - dir is checked against the root
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp reads a temporary file and returns a reader.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupScratch removes the scratch directory dir. Missing directories are
// not an error. The context is ignored so cleanup of a cancelled render still
// completes.
func (s *LocalStorage) CleanupScratch(_ context.Context, dir string) error {
	if err := s.checkInside(dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove scratch directory %s: %w", dir, err)
	}
	return nil
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// S3Enabled always returns false for LocalStorage.
func (s *LocalStorage) S3Enabled() bool {
	return false
}

// checkInside rejects directories that are not strict children of the root.
func (s *LocalStorage) checkInside(dir string) error {
	rel, err := filepath.Rel(s.tempDir, filepath.Clean(dir))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, dir)
	}
	return nil
}

// Verify interface implementation at compile time.
var _ Storage = (*LocalStorage)(nil)
