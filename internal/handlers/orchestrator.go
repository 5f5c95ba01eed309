package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/pipeline"
)

// ImageProcessor runs the translation pipeline for one upload
type ImageProcessor interface {
	Process(ctx context.Context, req *pipeline.ProcessRequest) (*pipeline.ProcessResult, error)
}

// OrchestratorConfig holds orchestrator handler configuration
type OrchestratorConfig struct {
	Version           string
	OCRURL            string
	TranslateURL      string
	DefaultTargetLang string
	DefaultSourceLang string
	MaxUploadSize     int64
	StatusTimeout     time.Duration
}

// OrchestratorHandler serves the public pipeline API
type OrchestratorHandler struct {
	processor ImageProcessor
	probers   []pipeline.HealthProber
	config    OrchestratorConfig
	logger    *logging.Logger
}

// NewOrchestratorHandler creates a new orchestrator handler
func NewOrchestratorHandler(processor ImageProcessor, probers []pipeline.HealthProber, cfg OrchestratorConfig) *OrchestratorHandler {
	if cfg.DefaultTargetLang == "" {
		cfg.DefaultTargetLang = "zh"
	}
	if cfg.DefaultSourceLang == "" {
		cfg.DefaultSourceLang = "auto"
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 50 << 20
	}

	return &OrchestratorHandler{
		processor: processor,
		probers:   probers,
		config:    cfg,
		logger:    logging.NewLogger("orchestrator-http"),
	}
}

// Routes registers the orchestrator endpoints
func (h *OrchestratorHandler) Routes(r chi.Router) {
	r.Get("/", h.Index)
	r.Get("/health", h.Health)
	r.Post("/process/image", h.ProcessImage)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/process/image", h.ProcessImage)
		r.Get("/services/status", h.ServicesStatus)
	})
}

// ProcessImage handles POST /v1/process/image
func (h *OrchestratorHandler) ProcessImage(w http.ResponseWriter, r *http.Request) {
	receivedAt := time.Now()

	// Multipart overhead on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, uploadError(err, h.config.MaxUploadSize))
		return
	}
	defer file.Close()

	targetLang := r.URL.Query().Get("target_lang")
	if targetLang == "" {
		targetLang = r.FormValue("target_lang")
	}
	if targetLang == "" {
		targetLang = h.config.DefaultTargetLang
	}

	sourceLang := r.URL.Query().Get("source_lang")
	if sourceLang == "" {
		sourceLang = h.config.DefaultSourceLang
	}

	result, err := h.processor.Process(r.Context(), &pipeline.ProcessRequest{
		Filename:   header.Filename,
		Body:       file,
		TargetLang: targetLang,
		SourceLang: sourceLang,
		ReceivedAt: receivedAt,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ServicesStatus handles GET /v1/services/status
func (h *OrchestratorHandler) ServicesStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pipeline.CheckServices(r.Context(), h.config.StatusTimeout, h.probers...))
}

// Health handles GET /health
func (h *OrchestratorHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"service":       "orchestrator",
		"version":       h.config.Version,
		"ocr_url":       h.config.OCRURL,
		"translate_url": h.config.TranslateURL,
	})
}

// Index handles GET /
func (h *OrchestratorHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Document Translation Orchestrator",
		"version": h.config.Version,
		"endpoints": map[string]string{
			"process_image":   "POST /v1/process/image",
			"services_status": "GET /v1/services/status",
			"health":          "GET /health",
		},
	})
}
