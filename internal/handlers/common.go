/**
 * HTTP plumbing shared by every service: router construction, middleware
 * and JSON/error response helpers.
 */

package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/logging"
)

// RouteRegistrar is implemented by every service handler
type RouteRegistrar interface {
	Routes(r chi.Router)
}

// NewRouter creates a router with the standard middleware stack and mounts h
func NewRouter(logger *logging.Logger, h RouteRegistrar) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS([]string{"*"}))

	h.Routes(r)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusNotFound, string(errors.ErrorNotFound), "route not found: "+r.URL.Path)
	})

	return r
}

// RequestLogger logs one line per request through the service logger
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("HTTP request", kv...)
				return
			}
			logger.Debug("HTTP request", kv...)
		})
	}
}

// CORS allows the given origins on every route and answers preflight requests
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status its code maps to
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	status := errors.HTTPStatus(err)

	pe, ok := errors.As(err)
	if !ok {
		logger.Error("Unhandled error", "error", err)
		writeErrorMessage(w, status, "INTERNAL_ERROR", err.Error())
		return
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "code", pe.Code, "service", pe.Service, "error", err)
	}
	writeJSON(w, status, pe.ToMap())
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// uploadError turns a multipart read failure into a client-facing error
func uploadError(err error, limit int64) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return errors.NewFileTooLargeError(maxErr.Limit, limit)
	}
	return errors.NewClientInputError("multipart field 'file' is required", err)
}
