package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

/**
 * Error taxonomy for the translation pipeline
 *
 * Every failure that crosses a service boundary is a *ProcessingError carrying
 * a code, the upstream service it concerns (if any) and the original cause.
 * Handlers turn them into HTTP responses with HTTPStatus and ToMap.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Caller errors
	ErrorClientInput       ErrorCode = "CLIENT_INPUT"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorFileTooLarge      ErrorCode = "FILE_TOO_LARGE"
	ErrorNotFound          ErrorCode = "NOT_FOUND"

	// Upstream provider errors
	ErrorUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrorUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrorUpstreamFailed      ErrorCode = "UPSTREAM_FAILED"
	ErrorContractViolation   ErrorCode = "CONTRACT_VIOLATION"

	// Engine and storage errors
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorTranslationFailed ErrorCode = "TRANSLATION_FAILED"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	Service   string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewClientInputError(message string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorClientInput,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewUnsupportedFormatError(filename string, allowed []string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", filename),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"allowed_extensions": allowed,
		},
	}
}

func NewFileTooLargeError(size, limit int64) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorFileTooLarge,
		Message:   fmt.Sprintf("File size exceeds limit of %d MB", limit/(1024*1024)),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"file_size": size,
			"max_size":  limit,
		},
	}
}

func NewNotFoundError(kind, id string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNotFound,
		Message:   fmt.Sprintf("%s not found: %s", kind, id),
		Timestamp: time.Now(),
	}
}

// NewUpstreamError classifies a failed call to service as a timeout or as
// unavailability (connection refused, DNS failure, reset).
func NewUpstreamError(service string, cause error) *ProcessingError {
	if IsTimeout(cause) {
		return &ProcessingError{
			Code:      ErrorUpstreamTimeout,
			Message:   fmt.Sprintf("%s service timed out", service),
			Service:   service,
			Timestamp: time.Now(),
			Cause:     cause,
		}
	}

	return &ProcessingError{
		Code:      ErrorUpstreamUnavailable,
		Message:   fmt.Sprintf("%s service unavailable", service),
		Service:   service,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"reason": unavailableReason(cause),
		},
		Cause: cause,
	}
}

// NewUpstreamTimeoutError reports that service did not answer within budget
func NewUpstreamTimeoutError(service string, budget time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUpstreamTimeout,
		Message:   fmt.Sprintf("%s service timed out after %v", service, budget),
		Service:   service,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": budget.String(),
		},
		Cause: cause,
	}
}

// NewUpstreamStatusError reports a non-2xx answer or an undecodable body
func NewUpstreamStatusError(service string, status int, body string) *ProcessingError {
	if len(body) > 512 {
		body = body[:512]
	}
	return &ProcessingError{
		Code:      ErrorUpstreamFailed,
		Message:   fmt.Sprintf("%s service returned error status %d", service, status),
		Service:   service,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"upstream_status": status,
			"upstream_body":   body,
		},
	}
}

func NewUpstreamDecodeError(service string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUpstreamFailed,
		Message:   fmt.Sprintf("%s service returned an invalid response", service),
		Service:   service,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewContractViolationError(service string, sent, received int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorContractViolation,
		Message:   fmt.Sprintf("%s service returned %d results for %d inputs", service, received, sent),
		Service:   service,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"sent":     sent,
			"received": received,
		},
	}
}

func NewOCRFailedError(engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed with engine: %s", engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine": engine,
		},
		Cause: cause,
	}
}

func NewTranslationFailedError(engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorTranslationFailed,
		Message:   fmt.Sprintf("Translation failed with engine: %s", engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine": engine,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(operation string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   fmt.Sprintf("Storage operation failed: %s", operation),
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to a map for JSON responses
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error":     string(e.Code),
		"message":   e.Message,
		"timestamp": e.Timestamp,
	}

	if e.Service != "" {
		result["service"] = e.Service
	}

	if len(e.Details) > 0 {
		details := make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			details[k] = v
		}
		result["details"] = details
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

// StatusCode maps the error code to an HTTP status
func (e *ProcessingError) StatusCode() int {
	switch e.Code {
	case ErrorClientInput, ErrorUnsupportedFormat:
		return http.StatusBadRequest
	case ErrorFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorNotFound:
		return http.StatusNotFound
	case ErrorUpstreamUnavailable, ErrorUpstreamFailed:
		return http.StatusBadGateway
	case ErrorUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// As returns the *ProcessingError in err's chain, if any
func As(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code
func HasCode(err error, code ErrorCode) bool {
	pe, ok := As(err)
	return ok && pe.Code == code
}

// HTTPStatus maps any error to an HTTP status; untyped errors are 500
func HTTPStatus(err error) int {
	if pe, ok := As(err); ok {
		return pe.StatusCode()
	}
	return http.StatusInternalServerError
}

// IsTimeout reports whether err is a deadline or network timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func unavailableReason(err error) string {
	var dnsErr *net.DNSError
	switch {
	case err == nil:
		return "unknown"
	case stderrors.As(err, &dnsErr):
		return "dns_failure"
	case stderrors.Is(err, syscall.ECONNREFUSED):
		return "connection_refused"
	case stderrors.Is(err, syscall.ECONNRESET):
		return "connection_reset"
	case stderrors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport_error"
	}
}
