/**
 * Tesseract OCR engine
 *
 * Line-level recognition through libtesseract. Kept in its own package so
 * the rest of the OCR code builds and tests without cgo.
 */

package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/doctranslate/internal/ocr"
)

// Config holds Tesseract configuration
type Config struct {
	Languages      []string
	TessdataPrefix string
	MinConfidence  float64
}

// Engine runs Tesseract at text-line granularity
type Engine struct {
	languages      []string
	tessdataPrefix string
	minConfidence  float64
}

// Available reports whether libtesseract is linked and answering
func Available() bool {
	return gosseract.Version() != ""
}

// New creates a new Tesseract engine
func New(cfg Config) *Engine {
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{
		languages:      languages,
		tessdataPrefix: cfg.TessdataPrefix,
		minConfidence:  cfg.MinConfidence,
	}
}

func (e *Engine) Name() string {
	return ocr.EngineTesseract
}

// Detect performs OCR and returns one block per recognized text line
func (e *Engine) Detect(ctx context.Context, img *ocr.Image) ([]ocr.TextBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if e.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}

	if err := client.SetLanguage(e.languages...); err != nil {
		return nil, fmt.Errorf("failed to set languages %v: %w", e.languages, err)
	}

	if err := client.SetImageFromBytes(img.Data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	// libtesseract is not interruptible; honour cancellation once it returns
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blocks := make([]ocr.TextBlock, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		conf := b.Confidence / 100.0
		if text == "" || conf <= e.minConfidence {
			continue
		}
		blocks = append(blocks, ocr.TextBlock{
			Text:       text,
			BBox:       ocr.BBox{b.Box.Min.X, b.Box.Min.Y, b.Box.Max.X, b.Box.Max.Y},
			Confidence: conf,
		})
	}

	return blocks, nil
}
