package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/translation"
)

// Translator is the translation service as seen by its HTTP handler
type Translator interface {
	Translate(ctx context.Context, req *translation.Request) (*translation.Response, error)
	CurrentEngine() string
	DefaultEngine() string
	AvailableEngines() []string
}

// TranslationHandler serves the translation service API
type TranslationHandler struct {
	service Translator
	version string
	logger  *logging.Logger
}

// NewTranslationHandler creates a new translation handler
func NewTranslationHandler(service Translator, version string) *TranslationHandler {
	return &TranslationHandler{
		service: service,
		version: version,
		logger:  logging.NewLogger("translation-http"),
	}
}

// Routes registers the translation endpoints
func (h *TranslationHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/engines", h.Engines)
	r.Get("/languages", h.Languages)
	r.Post("/translate", h.Translate)
}

// Translate handles POST /translate
func (h *TranslationHandler) Translate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 8<<20)

	var req translation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, errors.NewClientInputError("invalid request body", err))
		return
	}

	resp, err := h.service.Translate(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /health
func (h *TranslationHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"service":           "translation",
		"version":           h.version,
		"available_engines": h.service.AvailableEngines(),
		"current_engine":    h.service.CurrentEngine(),
	})
}

// Engines handles GET /engines
func (h *TranslationHandler) Engines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": h.service.AvailableEngines(),
		"current":   h.service.CurrentEngine(),
		"default":   h.service.DefaultEngine(),
	})
}

// Languages handles GET /languages
func (h *TranslationHandler) Languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"supported":   translation.Languages(),
		"auto_detect": true,
	})
}
