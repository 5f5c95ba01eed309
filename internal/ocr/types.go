/**
 * OCR Types - Shared data structures for OCR operations
 *
 * TextBlock is the unit exchanged between the OCR service and the
 * orchestrator. Engines produce them in reading order and nobody
 * downstream re-sorts them.
 */

package ocr

import (
	"context"
	"encoding/json"
	"strings"
)

// BBox is an axis-aligned rectangle [x1, y1, x2, y2] in pixel coordinates
type BBox [4]int

// Normalize orders the corners so x1 <= x2 and y1 <= y2
func (b BBox) Normalize() BBox {
	if b[0] > b[2] {
		b[0], b[2] = b[2], b[0]
	}
	if b[1] > b[3] {
		b[1], b[3] = b[3], b[1]
	}
	return b
}

// BBoxFromPoints returns the bounding rectangle of a polygon given as (x, y) pairs
func BBoxFromPoints(points [][2]int) BBox {
	if len(points) == 0 {
		return BBox{}
	}
	minX, minY := points[0][0], points[0][1]
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = min(minX, p[0])
		minY = min(minY, p[1])
		maxX = max(maxX, p[0])
		maxY = max(maxY, p[1])
	}
	return BBox{minX, minY, maxX, maxY}
}

// TextBlock is one recognized text region
type TextBlock struct {
	Text       string  `json:"text"`
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"conf"`
}

// UnmarshalJSON accepts "confidence" as an alias of "conf" and defaults a
// missing confidence to 1.0, matching engines that omit it.
func (b *TextBlock) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text       string   `json:"text"`
		BBox       *BBox    `json:"bbox"`
		Conf       *float64 `json:"conf"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.Text = raw.Text
	b.BBox = BBox{}
	if raw.BBox != nil {
		b.BBox = *raw.BBox
	}

	switch {
	case raw.Conf != nil:
		b.Confidence = *raw.Conf
	case raw.Confidence != nil:
		b.Confidence = *raw.Confidence
	default:
		b.Confidence = 1.0
	}
	return nil
}

// HasText reports whether the block carries non-whitespace text
func (b TextBlock) HasText() bool {
	return strings.TrimSpace(b.Text) != ""
}

// Image is a decoded-header view of an uploaded image
type Image struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// Engine recognizes text regions in an image
type Engine interface {
	Name() string
	Detect(ctx context.Context, img *Image) ([]TextBlock, error)
}

// Engine names
const (
	EngineTesseract   = "tesseract"
	EnginePlaceholder = "placeholder"
)

// Result is the OCR service response body
type Result struct {
	Blocks           []TextBlock `json:"blocks"`
	Engine           string      `json:"engine"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
}
