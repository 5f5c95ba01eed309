package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/doctranslate/internal/errors"
)

type spyEngine struct {
	calls  int
	output func(lines []string) []string
	err    error
}

func (s *spyEngine) Name() string { return "spy" }

func (s *spyEngine) TranslateBatch(ctx context.Context, lines []string, targetLang, sourceLang string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.output(lines), nil
}

func TestServiceEmptyBatchSkipsEngine(t *testing.T) {
	spy := &spyEngine{output: func(l []string) []string { return l }}
	svc := NewService(ServiceConfig{Engine: spy})

	resp, err := svc.Translate(context.Background(), &Request{Lines: []string{}, TargetLang: "zh"})
	require.NoError(t, err)

	assert.Equal(t, 0, spy.calls)
	assert.NotNil(t, resp.Translations)
	assert.Empty(t, resp.Translations)
}

func TestServicePadsShortEngineOutput(t *testing.T) {
	spy := &spyEngine{output: func(l []string) []string { return []string{"uno"} }}
	svc := NewService(ServiceConfig{Engine: spy})

	resp, err := svc.Translate(context.Background(), &Request{Lines: []string{"one", "two", "three"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"uno", "[ERR] two", "[ERR] three"}, resp.Translations)
}

func TestServiceTruncatesLongEngineOutput(t *testing.T) {
	spy := &spyEngine{output: func(l []string) []string { return []string{"a", "b", "c"} }}
	svc := NewService(ServiceConfig{Engine: spy})

	resp, err := svc.Translate(context.Background(), &Request{Lines: []string{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, resp.Translations)
}

func TestServiceEngineErrorBecomesSentinels(t *testing.T) {
	spy := &spyEngine{err: fmt.Errorf("model not loaded")}
	svc := NewService(ServiceConfig{Engine: spy})

	resp, err := svc.Translate(context.Background(), &Request{Lines: []string{"Hello", "World"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"[ERR] Hello", "[ERR] World"}, resp.Translations)
}

func TestServiceCancelledContext(t *testing.T) {
	spy := &spyEngine{err: context.Canceled}
	svc := NewService(ServiceConfig{Engine: spy})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Translate(ctx, &Request{Lines: []string{"Hello"}})
	assert.True(t, errors.HasCode(err, errors.ErrorTranslationFailed))
}

func TestServiceRejectsOversizedBatch(t *testing.T) {
	svc := NewService(ServiceConfig{MaxLines: 1})

	_, err := svc.Translate(context.Background(), &Request{Lines: []string{"a", "b"}})
	assert.True(t, errors.HasCode(err, errors.ErrorClientInput))
}

func TestServiceDefaultsLanguages(t *testing.T) {
	svc := NewService(ServiceConfig{})

	req := &Request{Lines: []string{"Hello"}}
	resp, err := svc.Translate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "zh", req.TargetLang)
	assert.Equal(t, AutoDetect, req.SourceLang)
	assert.Equal(t, []string{"[中文翻译] Hello"}, resp.Translations)
	assert.Equal(t, EnginePlaceholder, resp.Engine)
}

func TestPlaceholderEngineTags(t *testing.T) {
	engine := NewPlaceholderEngine()
	tests := []struct {
		target   string
		expected string
	}{
		{"zh", "[中文翻译] hi"},
		{"en", "[English Translation] hi"},
		{"ja", "[ja] hi"},
	}

	for _, tt := range tests {
		out, err := engine.TranslateBatch(context.Background(), []string{"hi"}, tt.target, AutoDetect)
		require.NoError(t, err)
		assert.Equal(t, []string{tt.expected}, out)
	}
}

func newFakeOllama(t *testing.T, respond func(prompt string) (int, string)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		atomic.AddInt32(&calls, 1)

		var req ollamaGenerateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2:latest", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, 0.3, req.Options.Temperature)

		status, text := respond(req.Prompt)
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: text, Done: true})
			return
		}
		_, _ = w.Write([]byte(text))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOllamaEngineTranslatesPerLine(t *testing.T) {
	srv, calls := newFakeOllama(t, func(prompt string) (int, string) {
		switch {
		case strings.HasSuffix(prompt, "Hello"):
			return http.StatusOK, "Translation: 你好"
		case strings.HasSuffix(prompt, "Empty"):
			return http.StatusOK, "   "
		default:
			return http.StatusInternalServerError, "model crashed"
		}
	})

	engine := NewOllamaEngine(OllamaConfig{Host: srv.URL + "/", Model: "llama3.2:latest", Temperature: 0.3, TopP: 0.9})
	out, err := engine.TranslateBatch(context.Background(), []string{"Hello", "Empty", "Boom"}, "zh", AutoDetect)
	require.NoError(t, err)

	assert.Equal(t, []string{"你好", "Empty", "[ERR] Boom"}, out)
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestOllamaEngineHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	engine := NewOllamaEngine(OllamaConfig{Host: srv.URL, Model: "m"})
	assert.NoError(t, engine.HealthCheck(context.Background()))

	srv.Close()
	assert.Error(t, engine.HealthCheck(context.Background()))
}

func TestBuildPrompt(t *testing.T) {
	auto := buildPrompt("Hello", "zh", AutoDetect)
	assert.Contains(t, auto, "into 中文")
	assert.True(t, strings.HasSuffix(auto, "\n\nHello"))

	withSource := buildPrompt("Bonjour", "en", "fr")
	assert.Contains(t, withSource, "following Français text into English")
}

func TestCleanTranslation(t *testing.T) {
	assert.Equal(t, "你好", cleanTranslation("翻译: 你好\n", "Hello"))
	assert.Equal(t, "Hello", cleanTranslation("", "Hello"))
	assert.Equal(t, "Bonjour", cleanTranslation("  Bonjour ", "Hello"))
}

func TestLanguages(t *testing.T) {
	langs := Languages()
	assert.Equal(t, "English", langs["en"])
	assert.Contains(t, langs, AutoDetect)
	assert.Equal(t, []string{"de", "en", "es", "fr", "ja", "ko", "zh"}, LanguageCodes())
	assert.Equal(t, "xx", LanguageName("xx"))
}
