/**
 * Translation Service
 *
 * Owns the one-output-per-input contract: whatever the engine returns, the
 * caller receives exactly len(lines) entries, with error sentinels standing
 * in for anything the engine could not produce.
 */

package translation

import (
	"context"
	"time"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/logging"
)

// ServiceConfig holds translation service configuration
type ServiceConfig struct {
	Engine        Engine
	Available     []string
	DefaultEngine string
	MaxLines      int
}

// Service runs translation batches against the engine chosen at start-up
type Service struct {
	engine        Engine
	available     []string
	defaultEngine string
	maxLines      int
	logger        *logging.Logger
}

// NewService creates a new translation service
func NewService(cfg ServiceConfig) *Service {
	engine := cfg.Engine
	if engine == nil {
		engine = NewPlaceholderEngine()
	}

	available := cfg.Available
	if len(available) == 0 {
		available = []string{engine.Name()}
	}

	defaultEngine := cfg.DefaultEngine
	if defaultEngine == "" {
		defaultEngine = engine.Name()
	}

	return &Service{
		engine:        engine,
		available:     available,
		defaultEngine: defaultEngine,
		maxLines:      cfg.MaxLines,
		logger:        logging.NewLogger("translation"),
	}
}

// Translate returns exactly one entry per input line
func (s *Service) Translate(ctx context.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	if req.TargetLang == "" {
		req.TargetLang = "zh"
	}
	if req.SourceLang == "" {
		req.SourceLang = AutoDetect
	}

	if s.maxLines > 0 && len(req.Lines) > s.maxLines {
		return nil, errors.NewClientInputError("too many lines in one request", nil)
	}

	if len(req.Lines) == 0 {
		return &Response{
			Translations:     []string{},
			Engine:           s.engine.Name(),
			ProcessingTimeMs: time.Since(startTime).Milliseconds(),
		}, nil
	}

	translations, err := s.engine.TranslateBatch(ctx, req.Lines, req.TargetLang, req.SourceLang)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewTranslationFailedError(s.engine.Name(), ctx.Err())
		}
		s.logger.Error("Translation engine failed, returning error sentinels",
			"engine", s.engine.Name(), "lines", len(req.Lines), "error", err)
		translations = nil
	}

	translations = s.enforceCount(req.Lines, translations)

	return &Response{
		Translations:     translations,
		Engine:           s.engine.Name(),
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}, nil
}

// enforceCount pads missing entries with sentinels and drops extras
func (s *Service) enforceCount(lines, translations []string) []string {
	if len(translations) == len(lines) {
		return translations
	}

	if translations != nil {
		violation := errors.NewContractViolationError(s.engine.Name(), len(lines), len(translations))
		s.logger.Warn("Engine returned wrong number of translations",
			"engine", s.engine.Name(), "sent", len(lines), "received", len(translations), "error", violation)
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if i < len(translations) {
			out[i] = translations[i]
			continue
		}
		out[i] = Sentinel(line)
	}
	return out
}

// CurrentEngine returns the engine chosen at start-up
func (s *Service) CurrentEngine() string {
	return s.engine.Name()
}

// DefaultEngine returns the configured default engine name
func (s *Service) DefaultEngine() string {
	return s.defaultEngine
}

// AvailableEngines lists the engines this process can run
func (s *Service) AvailableEngines() []string {
	out := make([]string, len(s.available))
	copy(out, s.available)
	return out
}
