package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrBlobNotFound is returned when a blob key has no content
var ErrBlobNotFound = stderrors.New("blob not found")

// Blob namespaces
const (
	NamespaceUploads   = "uploads"
	NamespaceProcessed = "processed"
)

// UploadKey returns the blob key for an uploaded file
func UploadKey(name string) string {
	return NamespaceUploads + "/" + name
}

// ProcessedKey returns the blob key for a derived artifact
func ProcessedKey(name string) string {
	return NamespaceProcessed + "/" + name
}

// BlobStore holds file contents by key. Keys are "<namespace>/<name>".
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DiskBlobStore maps each namespace onto a local directory
type DiskBlobStore struct {
	dirs map[string]string
}

// NewDiskBlobStore creates the upload and processed directories
func NewDiskBlobStore(uploadDir, processedDir string) (*DiskBlobStore, error) {
	dirs := map[string]string{
		NamespaceUploads:   uploadDir,
		NamespaceProcessed: processedDir,
	}
	for ns, dir := range dirs {
		if dir == "" {
			return nil, fmt.Errorf("%s directory is required", ns)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", ns, err)
		}
	}
	return &DiskBlobStore{dirs: dirs}, nil
}

// Path resolves key to a file path, rejecting anything outside the namespace
func (s *DiskBlobStore) Path(key string) (string, error) {
	ns, name, ok := strings.Cut(key, "/")
	if !ok {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	dir, ok := s.dirs[ns]
	if !ok {
		return "", fmt.Errorf("unknown blob namespace %q", ns)
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(dir, name), nil
}

// Put writes r to a temporary file and renames it into place
func (s *DiskBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move blob into place: %w", err)
	}
	return nil
}

// Open returns the file for key; the reader also implements io.Seeker
func (s *DiskBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Delete removes key; a missing file is not an error
func (s *DiskBlobStore) Delete(ctx context.Context, key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Exists reports whether key has content
func (s *DiskBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.Path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}
	return true, nil
}
