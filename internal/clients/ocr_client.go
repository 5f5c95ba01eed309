/**
 * OCR Client for the orchestrator
 *
 * Forwards the raw upload to the OCR service as multipart form data and
 * returns its text blocks untouched, in the order the service produced them.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/ocr"
)

// ServiceOCR names the OCR provider in errors and status reports
const ServiceOCR = "ocr"

// OCRClient calls POST {endpoint} on the OCR service
type OCRClient struct {
	endpoint   string
	healthURL  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewOCRClient creates a new OCR client; endpoint is the full /ocr URL
func NewOCRClient(endpoint string) (*OCRClient, error) {
	healthURL, err := healthURLFor(endpoint)
	if err != nil {
		return nil, err
	}

	return &OCRClient{
		endpoint:  endpoint,
		healthURL: healthURL,
		httpClient: &http.Client{
			// Per-call budgets come from the caller's context
			Timeout: 5 * time.Minute,
		},
		logger: logging.NewLogger("ocr-client"),
	}, nil
}

func (c *OCRClient) Name() string {
	return ServiceOCR
}

// URL returns the health URL reported by status checks
func (c *OCRClient) URL() string {
	return c.healthURL
}

// HealthCheck verifies the OCR service is available
func (c *OCRClient) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.httpClient, ServiceOCR, c.healthURL)
}

// Detect uploads the image and returns the recognized blocks
func (c *OCRClient) Detect(ctx context.Context, filename string, data []byte) ([]ocr.TextBlock, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file data to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	setTraceHeaders(ctx, req)

	c.logger.Debug("Calling OCR service", "endpoint", c.endpoint, "filename", filename, "size", len(data))

	respBody, err := do(c.httpClient, ServiceOCR, req)
	if err != nil {
		return nil, err
	}

	var result ocr.Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, errors.NewUpstreamDecodeError(ServiceOCR, err)
	}

	c.logger.Debug("OCR service answered", "engine", result.Engine, "blocks", len(result.Blocks),
		"upstream_ms", result.ProcessingTimeMs)

	return result.Blocks, nil
}
