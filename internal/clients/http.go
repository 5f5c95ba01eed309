/**
 * Shared plumbing for the upstream provider clients
 */

package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/adverant/nexus/doctranslate/internal/errors"
)

const sourceHeader = "doctranslate-orchestrator"

// maxResponseBytes bounds how much of an upstream body we buffer
const maxResponseBytes = 32 << 20

// healthURLFor derives the /health URL that sits beside a service endpoint
func healthURLFor(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	u.Path = "/health"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func setTraceHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("X-Source", sourceHeader)
	if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
}

// do executes req and returns the body of a 2xx response. Transport failures
// become upstream unavailable/timeout errors, other statuses upstream failures.
func do(httpClient *http.Client, service string, req *http.Request) ([]byte, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.NewUpstreamError(service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.NewUpstreamError(service, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewUpstreamStatusError(service, resp.StatusCode, string(body))
	}

	return body, nil
}

// healthCheck performs GET healthURL and fails on any non-200 answer
func healthCheck(ctx context.Context, httpClient *http.Client, service, healthURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	setTraceHeaders(ctx, req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s health check returned status %d: %s", service, resp.StatusCode, string(body))
	}

	return nil
}
