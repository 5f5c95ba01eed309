package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/ocr"
)

// Recognizer is the OCR service as seen by its HTTP handler
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) (*ocr.Result, error)
	CurrentEngine() string
	DefaultEngine() string
	AvailableEngines() []string
}

// OCRHandler serves the OCR service API
type OCRHandler struct {
	service       Recognizer
	version       string
	maxUploadSize int64
	logger        *logging.Logger
}

// NewOCRHandler creates a new OCR handler
func NewOCRHandler(service Recognizer, version string, maxUploadSize int64) *OCRHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 50 << 20
	}
	return &OCRHandler{
		service:       service,
		version:       version,
		maxUploadSize: maxUploadSize,
		logger:        logging.NewLogger("ocr-http"),
	}
}

// Routes registers the OCR endpoints
func (h *OCRHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/engines", h.Engines)
	r.Post("/ocr", h.Recognize)
}

// Recognize handles POST /ocr
func (h *OCRHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, uploadError(err, h.maxUploadSize))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.logger, errors.NewClientInputError("failed to read upload", err))
		return
	}

	result, err := h.service.Recognize(r.Context(), data)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Health handles GET /health
func (h *OCRHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"service":           "ocr",
		"version":           h.version,
		"available_engines": h.service.AvailableEngines(),
		"default_engine":    h.service.DefaultEngine(),
	})
}

// Engines handles GET /engines
func (h *OCRHandler) Engines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": h.service.AvailableEngines(),
		"current":   h.service.CurrentEngine(),
		"default":   h.service.DefaultEngine(),
	})
}
