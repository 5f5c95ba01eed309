/**
 * Ollama translation engine
 *
 * Translates line by line through a local Ollama server's generate API.
 * A failed line becomes an error sentinel; the batch itself only fails when
 * the caller's context is done.
 */

package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adverant/nexus/doctranslate/internal/logging"
)

// OllamaConfig holds Ollama engine configuration
type OllamaConfig struct {
	Host        string
	Model       string
	Timeout     time.Duration
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// OllamaEngine calls POST {host}/api/generate once per line
type OllamaEngine struct {
	host       string
	model      string
	options    ollamaOptions
	httpClient *http.Client
	logger     *logging.Logger
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaEngine creates a new Ollama engine
func NewOllamaEngine(cfg OllamaConfig) *OllamaEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OllamaEngine{
		host:  strings.TrimRight(cfg.Host, "/"),
		model: cfg.Model,
		options: ollamaOptions{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			NumPredict:  cfg.MaxTokens,
		},
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("ollama"),
	}
}

func (e *OllamaEngine) Name() string {
	return EngineOllama
}

// HealthCheck verifies the Ollama server answers its tags endpoint
func (e *OllamaEngine) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama unhealthy: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// TranslateBatch translates each line in order
func (e *OllamaEngine) TranslateBatch(ctx context.Context, lines []string, targetLang, sourceLang string) ([]string, error) {
	out := make([]string, len(lines))
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		translated, err := e.translateLine(ctx, line, targetLang, sourceLang)
		if err != nil {
			e.logger.Warn("Line translation failed", "index", i, "error", err)
			out[i] = Sentinel(line)
			continue
		}
		out[i] = translated
	}
	return out, nil
}

func (e *OllamaEngine) translateLine(ctx context.Context, line, targetLang, sourceLang string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   e.model,
		Prompt:  buildPrompt(line, targetLang, sourceLang),
		Stream:  false,
		Options: e.options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned error status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return cleanTranslation(result.Response, line), nil
}

func buildPrompt(text, targetLang, sourceLang string) string {
	target := LanguageName(targetLang)
	if sourceLang != "" && sourceLang != AutoDetect {
		return fmt.Sprintf("Please translate the following %s text into %s. Only return the translation result, no explanation:\n\n%s",
			LanguageName(sourceLang), target, text)
	}
	return fmt.Sprintf("Please translate the following text into %s. Only return the translation result, no explanation:\n\n%s",
		target, text)
}

var answerPrefixes = []string{"Translation:", "翻译:", "翻译："}

// cleanTranslation strips a leading label and falls back to the source on empty output
func cleanTranslation(raw, source string) string {
	out := strings.TrimSpace(raw)
	for _, prefix := range answerPrefixes {
		if strings.HasPrefix(out, prefix) {
			out = strings.TrimSpace(strings.TrimPrefix(out, prefix))
			break
		}
	}
	if out == "" {
		return source
	}
	return out
}
