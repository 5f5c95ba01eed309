/**
 * File Service
 *
 * Accepts uploads, stores them, and preprocesses them in the background:
 * image metadata and thumbnails, document page counts and text previews.
 * Records move uploaded -> processing -> ready | error.
 */

package files

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/preprocess"
	"github.com/adverant/nexus/doctranslate/internal/queue"
	"github.com/adverant/nexus/doctranslate/internal/storage"
)

// DefaultCategory is used when an upload names none
const DefaultCategory = "general"

// Config holds file service configuration
type Config struct {
	MaxFileSize int64
}

// Service implements the file service operations
type Service struct {
	storage      *storage.StorageManager
	preprocessor *preprocess.Preprocessor
	dispatcher   queue.Dispatcher
	maxFileSize  int64
	logger       *logging.Logger
}

// UploadRequest is one file upload
type UploadRequest struct {
	Filename string
	Category string
	Body     io.Reader
}

// Summary is the list view of a record
type Summary struct {
	FileID     string             `json:"file_id"`
	Filename   string             `json:"filename"`
	FileSize   int64              `json:"file_size"`
	FileType   string             `json:"file_type"`
	Status     storage.FileStatus `json:"status"`
	UploadedAt time.Time          `json:"uploaded_at"`
}

// NewService creates a new file service
func NewService(sm *storage.StorageManager, preprocessor *preprocess.Preprocessor, dispatcher queue.Dispatcher, cfg Config) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 100 << 20
	}
	return &Service{
		storage:      sm,
		preprocessor: preprocessor,
		dispatcher:   dispatcher,
		maxFileSize:  cfg.MaxFileSize,
		logger:       logging.NewLogger("files"),
	}
}

// MaxFileSize returns the upload size limit in bytes
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// Upload validates and stores a file, then schedules its preprocessing
func (s *Service) Upload(ctx context.Context, req *UploadRequest) (*storage.FileRecord, error) {
	if req.Filename == "" {
		return nil, errors.NewClientInputError("filename is required", nil)
	}
	if !preprocess.IsAllowed(req.Filename) {
		return nil, errors.NewUnsupportedFormatError(req.Filename, preprocess.AllowedExtensions())
	}
	if req.Body == nil {
		return nil, errors.NewClientInputError("file body is required", nil)
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, s.maxFileSize+1))
	if err != nil {
		return nil, errors.NewClientInputError("failed to read upload", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, errors.NewFileTooLargeError(int64(len(data)), s.maxFileSize)
	}

	category := req.Category
	if category == "" {
		category = DefaultCategory
	}

	fileID := uuid.New().String()
	safeFilename := fileID + "_" + sanitizeFilename(req.Filename)

	rec := &storage.FileRecord{
		FileID:       fileID,
		OriginalName: req.Filename,
		SafeFilename: safeFilename,
		FilePath:     storage.UploadKey(safeFilename),
		FileSize:     int64(len(data)),
		FileType:     preprocess.FileType(req.Filename),
		Category:     category,
		MimeType:     preprocess.DetectMimeType(req.Filename, data),
		UploadedAt:   time.Now().UTC(),
		Status:       storage.StatusUploaded,
	}

	if err := s.storage.StoreUpload(ctx, rec, data); err != nil {
		return nil, errors.NewStorageFailedError("upload", err)
	}

	s.logger.Info("File uploaded",
		"file_id", fileID, "filename", req.Filename, "size", rec.FileSize, "file_type", rec.FileType, "category", category)

	if err := s.dispatcher.Dispatch(ctx, fileID); err != nil {
		s.logger.Warn("Failed to schedule preprocessing", "file_id", fileID, "error", err)
		s.markError(ctx, fileID, fmt.Errorf("failed to schedule preprocessing: %w", err))
	}

	return rec, nil
}

// Preprocess inspects a stored upload and records the result. Inspection
// failures are recorded on the file and are not returned; storage failures
// are returned so the job can be retried.
func (s *Service) Preprocess(ctx context.Context, fileID string) error {
	startTime := time.Now()

	rec, err := s.storage.Records().Update(ctx, fileID, func(r *storage.FileRecord) error {
		r.Status = storage.StatusProcessing
		r.Error = ""
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark %s processing: %w", fileID, err)
	}

	data, err := s.readBlob(ctx, rec.FilePath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", fileID, err)
	}

	info, thumb, err := s.preprocessor.Process(ctx, rec.FileType, rec.SafeFilename, data)
	if err != nil {
		s.logger.Warn("Preprocessing failed", "file_id", fileID, "file_type", rec.FileType, "error", err)
		s.markError(ctx, fileID, err)
		return nil
	}

	if thumb != nil {
		key := storage.ProcessedKey(thumb.Name)
		if err := s.storage.Blobs().Put(ctx, key, bytes.NewReader(thumb.Data), int64(len(thumb.Data)), "image/jpeg"); err != nil {
			return fmt.Errorf("failed to store thumbnail for %s: %w", fileID, err)
		}
		info["thumbnail"] = key
	}

	processedAt := time.Now().UTC()
	_, err = s.storage.Records().Update(ctx, fileID, func(r *storage.FileRecord) error {
		r.Status = storage.StatusReady
		r.ProcessInfo = info
		r.ProcessedAt = &processedAt
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record result for %s: %w", fileID, err)
	}

	s.logger.Info("File preprocessed", "file_id", fileID, "file_type", rec.FileType, "duration", time.Since(startTime))
	return nil
}

func (s *Service) markError(ctx context.Context, fileID string, cause error) {
	_, err := s.storage.Records().Update(ctx, fileID, func(r *storage.FileRecord) error {
		r.Status = storage.StatusError
		r.Error = cause.Error()
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to record preprocessing error", "file_id", fileID, "error", err)
	}
}

func (s *Service) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.storage.Blobs().Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Get returns the record for fileID
func (s *Service) Get(ctx context.Context, fileID string) (*storage.FileRecord, error) {
	rec, err := s.storage.Records().Get(ctx, fileID)
	if err != nil {
		return nil, storeError("get", fileID, err)
	}
	return rec, nil
}

// Open returns the record and a reader over its contents; the caller closes it
func (s *Service) Open(ctx context.Context, fileID string) (*storage.FileRecord, io.ReadCloser, error) {
	rec, err := s.Get(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.storage.Blobs().Open(ctx, rec.FilePath)
	if stderrors.Is(err, storage.ErrBlobNotFound) {
		return nil, nil, errors.NewNotFoundError("file contents", fileID)
	}
	if err != nil {
		return nil, nil, errors.NewStorageFailedError("download", err)
	}
	return rec, rc, nil
}

// Delete removes a file and its derived artifacts
func (s *Service) Delete(ctx context.Context, fileID string) error {
	if _, err := s.storage.Delete(ctx, fileID); err != nil {
		return storeError("delete", fileID, err)
	}
	s.logger.Info("File deleted", "file_id", fileID)
	return nil
}

// List returns summaries of matching files in upload order
func (s *Service) List(ctx context.Context, filter storage.Filter) ([]Summary, error) {
	recs, err := s.storage.Records().List(ctx, filter)
	if err != nil {
		return nil, errors.NewStorageFailedError("list", err)
	}

	out := make([]Summary, 0, len(recs))
	for _, r := range recs {
		out = append(out, Summary{
			FileID:     r.FileID,
			Filename:   r.OriginalName,
			FileSize:   r.FileSize,
			FileType:   r.FileType,
			Status:     r.Status,
			UploadedAt: r.UploadedAt,
		})
	}
	return out, nil
}

// Cleanup deletes files uploaded more than olderThan ago
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan < 0 {
		return 0, errors.NewClientInputError("older_than_hours must not be negative", nil)
	}

	n, err := s.storage.Cleanup(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return n, errors.NewStorageFailedError("cleanup", err)
	}

	s.logger.Info("Cleanup completed", "deleted", n, "older_than", olderThan)
	return n, nil
}

// Ping checks the record store
func (s *Service) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

func storeError(op, fileID string, err error) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NewNotFoundError("file", fileID)
	}
	return errors.NewStorageFailedError(op, err)
}

// sanitizeFilename keeps the base name and drops characters that are unsafe
// in a path or object key
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '/', r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}
