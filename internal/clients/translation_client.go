/**
 * Translation Client for the orchestrator
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/translation"
)

// ServiceTranslation names the translation provider in errors and status reports
const ServiceTranslation = "translation"

// TranslationClient calls POST {endpoint} on the translation service
type TranslationClient struct {
	endpoint   string
	healthURL  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTranslationClient creates a new translation client; endpoint is the full /translate URL
func NewTranslationClient(endpoint string) (*TranslationClient, error) {
	healthURL, err := healthURLFor(endpoint)
	if err != nil {
		return nil, err
	}

	return &TranslationClient{
		endpoint:  endpoint,
		healthURL: healthURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logging.NewLogger("translation-client"),
	}, nil
}

func (c *TranslationClient) Name() string {
	return ServiceTranslation
}

// URL returns the health URL reported by status checks
func (c *TranslationClient) URL() string {
	return c.healthURL
}

// HealthCheck verifies the translation service is available
func (c *TranslationClient) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.httpClient, ServiceTranslation, c.healthURL)
}

// Translate sends the ordered lines and returns the service's translations.
// An empty batch never reaches the network.
func (c *TranslationClient) Translate(ctx context.Context, lines []string, targetLang, sourceLang string) ([]string, error) {
	if len(lines) == 0 {
		return []string{}, nil
	}

	payload, err := json.Marshal(translation.Request{
		Lines:      lines,
		TargetLang: targetLang,
		SourceLang: sourceLang,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal translation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setTraceHeaders(ctx, req)

	c.logger.Debug("Calling translation service", "endpoint", c.endpoint, "lines", len(lines), "target_lang", targetLang)

	respBody, err := do(c.httpClient, ServiceTranslation, req)
	if err != nil {
		return nil, err
	}

	var result translation.Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, errors.NewUpstreamDecodeError(ServiceTranslation, err)
	}

	return result.Translations, nil
}
