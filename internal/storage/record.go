/**
 * File records for the file service
 *
 * A FileRecord describes one upload and its preprocessing state. Records live
 * in a RecordStore; the bytes they describe live in a BlobStore.
 */

package storage

import (
	"context"
	stderrors "errors"
	"time"
)

// ErrNotFound is returned when no record exists for an id
var ErrNotFound = stderrors.New("record not found")

// FileStatus is the preprocessing state of an upload
type FileStatus string

const (
	StatusUploaded   FileStatus = "uploaded"
	StatusProcessing FileStatus = "processing"
	StatusReady      FileStatus = "ready"
	StatusError      FileStatus = "error"
)

// FileRecord is the metadata kept for every uploaded file
type FileRecord struct {
	FileID       string                 `json:"file_id"`
	OriginalName string                 `json:"original_name"`
	SafeFilename string                 `json:"safe_filename"`
	FilePath     string                 `json:"file_path"`
	FileSize     int64                  `json:"file_size"`
	FileType     string                 `json:"file_type"`
	Category     string                 `json:"category"`
	MimeType     string                 `json:"mime_type,omitempty"`
	UploadedAt   time.Time              `json:"uploaded_at"`
	Status       FileStatus             `json:"status"`
	ProcessInfo  map[string]interface{} `json:"process_info,omitempty"`
	ProcessedAt  *time.Time             `json:"processed_at,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// Thumbnail returns the blob key of the generated thumbnail, if any
func (r *FileRecord) Thumbnail() string {
	if r.ProcessInfo == nil {
		return ""
	}
	thumb, _ := r.ProcessInfo["thumbnail"].(string)
	return thumb
}

// Clone returns a deep enough copy for callers to mutate freely
func (r *FileRecord) Clone() *FileRecord {
	c := *r
	if r.ProcessInfo != nil {
		c.ProcessInfo = make(map[string]interface{}, len(r.ProcessInfo))
		for k, v := range r.ProcessInfo {
			c.ProcessInfo[k] = v
		}
	}
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Category string
	FileType string
	Limit    int
}

// Matches reports whether r passes the filter
func (f Filter) Matches(r *FileRecord) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.FileType != "" && r.FileType != f.FileType {
		return false
	}
	return true
}

// RecordStore persists file records by id.
//
// Update applies fn to the current record under per-key mutual exclusion and
// stores the result; if fn returns an error nothing is written. List returns
// records in upload order.
type RecordStore interface {
	Insert(ctx context.Context, rec *FileRecord) error
	Get(ctx context.Context, id string) (*FileRecord, error)
	Update(ctx context.Context, id string, fn func(*FileRecord) error) (*FileRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) ([]*FileRecord, error)
	OlderThan(ctx context.Context, cutoff time.Time) ([]*FileRecord, error)
	Ping(ctx context.Context) error
	Close() error
}
