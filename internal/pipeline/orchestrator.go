/**
 * Orchestrator - image translation pipeline
 *
 * Per request: save the upload, call OCR, keep non-blank lines, translate
 * them, and zip translations back onto their boxes by position. Each
 * upstream call runs under its own timeout and nothing is retried.
 */

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/logging"
)

// Service names used in upstream errors
const (
	ServiceOCR         = "ocr"
	ServiceTranslation = "translation"
)

// Config holds orchestrator configuration
type Config struct {
	OCRTimeout       time.Duration
	TranslateTimeout time.Duration
	UploadDir        string
	MaxUploadSize    int64
}

// Orchestrator sequences the OCR and translation providers
type Orchestrator struct {
	ocr        OCRProvider
	translator TranslationProvider
	config     Config
	logger     *logging.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(ocrProvider OCRProvider, translator TranslationProvider, cfg Config) (*Orchestrator, error) {
	if ocrProvider == nil {
		return nil, fmt.Errorf("OCR provider is required")
	}
	if translator == nil {
		return nil, fmt.Errorf("translation provider is required")
	}
	if cfg.OCRTimeout <= 0 {
		cfg.OCRTimeout = 60 * time.Second
	}
	if cfg.TranslateTimeout <= 0 {
		cfg.TranslateTimeout = 120 * time.Second
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &Orchestrator{
		ocr:        ocrProvider,
		translator: translator,
		config:     cfg,
		logger:     logging.NewLogger("orchestrator"),
	}, nil
}

// Process runs one image through the pipeline
func (o *Orchestrator) Process(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	imageID := uuid.New().String()
	logger := o.logger.With("image_id", imageID)
	logger.Debug("Stage transition", "stage", StageReceived, "filename", req.Filename)

	// Step 1: persist the upload for the lifetime of this request
	data, path, err := o.saveUpload(imageID, req)
	if err != nil {
		return nil, err
	}
	defer o.removeUpload(logger, path)
	logger.Debug("Stage transition", "stage", StageSaved, "path", path, "size", len(data))

	// Step 2: OCR
	logger.Debug("Stage transition", "stage", StageOCRCalled)
	ocrCtx, cancelOCR := context.WithTimeout(ctx, o.config.OCRTimeout)
	blocks, err := o.ocr.Detect(ocrCtx, req.Filename, data)
	cancelOCR()
	if err != nil {
		logger.Warn("OCR call failed", "stage", StageOCRFailed, "error", err)
		return nil, upstreamError(ServiceOCR, o.config.OCRTimeout, err)
	}
	logger.Debug("Stage transition", "stage", StageOCROK, "blocks", len(blocks))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("request cancelled after OCR: %w", err)
	}

	// Step 3: filter and short-circuit
	kept := FilterBlocks(blocks)
	if len(kept) == 0 {
		logger.Info("No text detected, skipping translation")
		return o.respond(logger, imageID, []TranslationItem{}, false, "", receivedAt), nil
	}

	// Step 4: translation
	lines := Lines(kept)
	logger.Debug("Stage transition", "stage", StageTranslateCalled, "lines", len(lines))
	trCtx, cancelTr := context.WithTimeout(ctx, o.config.TranslateTimeout)
	translations, err := o.translator.Translate(trCtx, lines, req.TargetLang, req.SourceLang)
	cancelTr()
	if err != nil {
		logger.Warn("Translation call failed", "stage", StageTranslateFailed, "error", err)
		return nil, upstreamError(ServiceTranslation, o.config.TranslateTimeout, err)
	}
	logger.Debug("Stage transition", "stage", StageTranslateOK, "translations", len(translations))

	// Step 5: merge by position
	items, partial := Merge(kept, translations)
	warning := ""
	if partial {
		violation := errors.NewContractViolationError(ServiceTranslation, len(lines), len(translations))
		warning = violation.Message
		logger.Warn("Translation count mismatch, returning partial result",
			"sent", len(lines), "received", len(translations), "error", violation)
	}
	logger.Debug("Stage transition", "stage", StageMerged, "items", len(items))

	return o.respond(logger, imageID, items, partial, warning, receivedAt), nil
}

func (o *Orchestrator) respond(logger *logging.Logger, imageID string, items []TranslationItem, partial bool, warning string, receivedAt time.Time) *ProcessResult {
	result := &ProcessResult{
		ImageID:          imageID,
		LineCount:        len(items),
		Items:            items,
		ProcessingTimeMs: time.Since(receivedAt).Milliseconds(),
		Partial:          partial,
		Warning:          warning,
	}
	logger.Info("Image processed",
		"stage", StageResponded, "lines", result.LineCount,
		"partial", partial, "processing_time_ms", result.ProcessingTimeMs)
	return result
}

// saveUpload writes the request body to UploadDir and returns its bytes
func (o *Orchestrator) saveUpload(imageID string, req *ProcessRequest) ([]byte, string, error) {
	if req.Body == nil {
		return nil, "", errors.NewClientInputError("file is required", nil)
	}

	limit := o.config.MaxUploadSize
	reader := req.Body
	if limit > 0 {
		reader = io.LimitReader(req.Body, limit+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", errors.NewClientInputError("failed to read upload", err)
	}
	if len(data) == 0 {
		return nil, "", errors.NewClientInputError("file is empty", nil)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, "", errors.NewFileTooLargeError(int64(len(data)), limit)
	}

	path := filepath.Join(o.config.UploadDir, imageID+"_"+SanitizeFilename(req.Filename))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, "", errors.NewStorageFailedError("save upload", err)
	}

	return data, path, nil
}

// removeUpload deletes the temporary copy; failures are only logged
func (o *Orchestrator) removeUpload(logger *logging.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove temporary upload", "path", path, "error", err)
	}
}

// upstreamError keeps typed errors and classifies the rest
func upstreamError(service string, budget time.Duration, err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	if errors.IsTimeout(err) {
		return errors.NewUpstreamTimeoutError(service, budget, err)
	}
	return errors.NewUpstreamError(service, err)
}

// SanitizeFilename reduces name to a safe base name for local storage
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "upload"
	}
	return out
}
