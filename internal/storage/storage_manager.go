/**
 * Storage Manager for the file service
 *
 * Coordinates the record store (metadata) and the blob store (contents) so
 * an upload is either fully stored or not at all, and removal clears both.
 */

package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/adverant/nexus/doctranslate/internal/logging"
)

// StorageManager coordinates record and blob operations
type StorageManager struct {
	records RecordStore
	blobs   BlobStore
	logger  *logging.Logger
}

// NewStorageManager creates a new storage manager
func NewStorageManager(records RecordStore, blobs BlobStore) *StorageManager {
	return &StorageManager{
		records: records,
		blobs:   blobs,
		logger:  logging.NewLogger("storage"),
	}
}

// Records returns the underlying record store
func (sm *StorageManager) Records() RecordStore {
	return sm.records
}

// Blobs returns the underlying blob store
func (sm *StorageManager) Blobs() BlobStore {
	return sm.blobs
}

// StoreUpload writes the file contents and then inserts rec. If the insert
// fails the blob is removed again.
func (sm *StorageManager) StoreUpload(ctx context.Context, rec *FileRecord, data []byte) error {
	if rec == nil || rec.FileID == "" {
		return fmt.Errorf("file ID is required")
	}
	if rec.FilePath == "" {
		return fmt.Errorf("blob key is required")
	}

	// Step 1: contents first, so a visible record always has its bytes
	if err := sm.blobs.Put(ctx, rec.FilePath, bytes.NewReader(data), int64(len(data)), rec.MimeType); err != nil {
		return fmt.Errorf("failed to store file contents: %w", err)
	}

	// Step 2: metadata
	if err := sm.records.Insert(ctx, rec); err != nil {
		// Rollback: delete the blob
		if delErr := sm.blobs.Delete(ctx, rec.FilePath); delErr != nil {
			sm.logger.Warn("Failed to roll back blob after insert failure",
				"file_id", rec.FileID, "key", rec.FilePath, "error", delErr)
		}
		return fmt.Errorf("failed to store file record: %w", err)
	}

	return nil
}

// Delete removes the record for id together with its blobs
func (sm *StorageManager) Delete(ctx context.Context, id string) (*FileRecord, error) {
	rec, err := sm.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sm.remove(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Cleanup removes every record uploaded before cutoff and returns how many
// were deleted. Individual failures are logged and skipped.
func (sm *StorageManager) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	recs, err := sm.records.OlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired records: %w", err)
	}

	deleted := 0
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := sm.remove(ctx, rec); err != nil {
			sm.logger.Warn("Failed to clean up file", "file_id", rec.FileID, "error", err)
			continue
		}
		deleted++
	}

	return deleted, nil
}

// RunSweeper deletes records older than retention every interval until ctx
// is cancelled
func (sm *StorageManager) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sm.Cleanup(ctx, time.Now().Add(-retention))
			if err != nil {
				sm.logger.Error("Retention sweep failed", "error", err)
				continue
			}
			if n > 0 {
				sm.logger.Info("Retention sweep removed files", "deleted", n, "retention", retention)
			}
		}
	}
}

// remove deletes the blobs best-effort, then the record
func (sm *StorageManager) remove(ctx context.Context, rec *FileRecord) error {
	if err := sm.blobs.Delete(ctx, rec.FilePath); err != nil {
		sm.logger.Warn("Failed to delete file contents", "file_id", rec.FileID, "key", rec.FilePath, "error", err)
	}
	if thumb := rec.Thumbnail(); thumb != "" {
		if err := sm.blobs.Delete(ctx, thumb); err != nil {
			sm.logger.Warn("Failed to delete thumbnail", "file_id", rec.FileID, "key", thumb, "error", err)
		}
	}

	return sm.records.Delete(ctx, rec.FileID)
}

// Ping checks the record store
func (sm *StorageManager) Ping(ctx context.Context) error {
	return sm.records.Ping(ctx)
}

// Close closes the record store
func (sm *StorageManager) Close() error {
	if sm.records != nil {
		if err := sm.records.Close(); err != nil {
			return fmt.Errorf("failed to close record store: %w", err)
		}
	}
	return nil
}
