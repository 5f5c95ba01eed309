package handlers

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/files"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/storage"
)

// FileStore is the file service as seen by its HTTP handler
type FileStore interface {
	Upload(ctx context.Context, req *files.UploadRequest) (*storage.FileRecord, error)
	Get(ctx context.Context, fileID string) (*storage.FileRecord, error)
	Open(ctx context.Context, fileID string) (*storage.FileRecord, io.ReadCloser, error)
	Delete(ctx context.Context, fileID string) error
	List(ctx context.Context, filter storage.Filter) ([]files.Summary, error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
	Ping(ctx context.Context) error
	MaxFileSize() int64
}

// FilesConfig holds file handler configuration
type FilesConfig struct {
	Version      string
	UploadDir    string
	ProcessedDir string
	RecordStore  string
	BlobStore    string
}

// FilesHandler serves the file service API
type FilesHandler struct {
	service FileStore
	config  FilesConfig
	logger  *logging.Logger
}

// NewFilesHandler creates a new file handler
func NewFilesHandler(service FileStore, cfg FilesConfig) *FilesHandler {
	return &FilesHandler{
		service: service,
		config:  cfg,
		logger:  logging.NewLogger("files-http"),
	}
}

// Routes registers the file service endpoints
func (h *FilesHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/upload", h.Upload)
	r.Get("/file/{id}", h.GetFile)
	r.Delete("/file/{id}", h.DeleteFile)
	r.Get("/download/{id}", h.Download)
	r.Get("/files", h.ListFiles)
	r.Post("/cleanup", h.Cleanup)
}

// Upload handles POST /upload
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, uploadError(err, limit))
		return
	}
	defer file.Close()

	category := r.URL.Query().Get("category")
	if category == "" {
		category = r.FormValue("category")
	}

	rec, err := h.service.Upload(r.Context(), &files.UploadRequest{
		Filename: header.Filename,
		Category: category,
		Body:     file,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"file_id":     rec.FileID,
		"filename":    rec.OriginalName,
		"file_size":   rec.FileSize,
		"file_type":   rec.FileType,
		"upload_time": rec.UploadedAt,
	})
}

// GetFile handles GET /file/{id}
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteFile handles DELETE /file/{id}
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "file deleted",
	})
}

// Download handles GET /download/{id}
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	rec, rc, err := h.service.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer rc.Close()

	contentType := rec.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": rec.OriginalName,
	}))

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, rec.OriginalName, rec.UploadedAt, rs)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(rec.FileSize, 10))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Download interrupted", "file_id", rec.FileID, "error", err)
	}
}

// ListFiles handles GET /files
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, h.logger, errors.NewClientInputError("limit must be a positive integer", err))
			return
		}
		limit = n
	}

	summaries, err := h.service.List(r.Context(), storage.Filter{
		Category: q.Get("category"),
		FileType: q.Get("file_type"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": summaries,
		"total": len(summaries),
	})
}

// Cleanup handles POST /cleanup
func (h *FilesHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("older_than_hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, h.logger, errors.NewClientInputError("older_than_hours must be an integer", err))
			return
		}
		hours = n
	}

	deleted, err := h.service.Cleanup(r.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"deleted_count": deleted,
		"message":       fmt.Sprintf("removed %d files older than %d hours", deleted, hours),
	})
}

// Health handles GET /health
func (h *FilesHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	storageInfo := map[string]interface{}{
		"upload_dir":    h.config.UploadDir,
		"processed_dir": h.config.ProcessedDir,
		"record_store":  h.config.RecordStore,
		"blob_store":    h.config.BlobStore,
	}

	if usage, err := files.GetDiskUsage(h.config.UploadDir); err == nil {
		storageInfo["disk_usage"] = usage
	} else {
		h.logger.Debug("Disk usage unavailable", "error", err)
	}

	if err := h.service.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		storageInfo["error"] = err.Error()
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "file-service",
		"version":   h.config.Version,
		"timestamp": time.Now().UTC(),
		"storage":   storageInfo,
	})
}
