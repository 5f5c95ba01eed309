/**
 * OCR Service
 *
 * Wraps the engine selected at start-up. Failures of the primary engine
 * degrade to the placeholder engine so callers still get a well-formed
 * (if synthetic) answer; undecodable input is rejected as a client error.
 */

package ocr

import (
	"bytes"
	"context"
	"image"
	"strings"
	"time"

	// Register decoders for every upload format we accept
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/logging"
)

// ServiceConfig holds OCR service configuration
type ServiceConfig struct {
	Primary       Engine
	Fallback      Engine
	Available     []string
	DefaultEngine string
	MinConfidence float64
}

// Service runs recognition requests against the configured engine
type Service struct {
	primary       Engine
	fallback      Engine
	available     []string
	defaultEngine string
	minConfidence float64
	logger        *logging.Logger
}

// NewService creates a new OCR service
func NewService(cfg ServiceConfig) *Service {
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = NewPlaceholderEngine()
	}
	primary := cfg.Primary
	if primary == nil {
		primary = fallback
	}

	available := cfg.Available
	if len(available) == 0 {
		available = []string{primary.Name()}
		if fallback.Name() != primary.Name() {
			available = append(available, fallback.Name())
		}
	}

	defaultEngine := cfg.DefaultEngine
	if defaultEngine == "" {
		defaultEngine = primary.Name()
	}

	return &Service{
		primary:       primary,
		fallback:      fallback,
		available:     available,
		defaultEngine: defaultEngine,
		minConfidence: cfg.MinConfidence,
		logger:        logging.NewLogger("ocr"),
	}
}

// Recognize decodes the image header, runs the engine and filters the blocks
func (s *Service) Recognize(ctx context.Context, data []byte) (*Result, error) {
	startTime := time.Now()

	if len(data) == 0 {
		return nil, errors.NewClientInputError("image is empty", nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewClientInputError("image could not be decoded", err)
	}

	img := &Image{Data: data, Width: cfg.Width, Height: cfg.Height, Format: format}

	engine := s.primary
	blocks, err := engine.Detect(ctx, img)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewOCRFailedError(engine.Name(), ctx.Err())
		}
		if engine.Name() == s.fallback.Name() {
			return nil, errors.NewOCRFailedError(engine.Name(), err)
		}

		s.logger.Warn("Primary OCR engine failed, degrading to fallback",
			"engine", engine.Name(), "fallback", s.fallback.Name(), "error", err)

		engine = s.fallback
		blocks, err = engine.Detect(ctx, img)
		if err != nil {
			return nil, errors.NewOCRFailedError(engine.Name(), err)
		}
	}

	blocks = s.filter(blocks)

	s.logger.Debug("OCR complete",
		"engine", engine.Name(), "format", format,
		"width", cfg.Width, "height", cfg.Height, "blocks", len(blocks))

	return &Result{
		Blocks:           blocks,
		Engine:           engine.Name(),
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}, nil
}

// filter trims text, drops empty or low-confidence blocks and keeps engine order
func (s *Service) filter(blocks []TextBlock) []TextBlock {
	out := make([]TextBlock, 0, len(blocks))
	for _, b := range blocks {
		b.Text = strings.TrimSpace(b.Text)
		if b.Text == "" || b.Confidence < s.minConfidence {
			continue
		}
		b.BBox = b.BBox.Normalize()
		b.Confidence = clampConfidence(b.Confidence)
		out = append(out, b)
	}
	return out
}

// CurrentEngine returns the engine chosen at start-up
func (s *Service) CurrentEngine() string {
	return s.primary.Name()
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

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
