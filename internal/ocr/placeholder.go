package ocr

import (
	"context"
	"unicode/utf8"
)

var placeholderLines = []string{"这是测试文字", "Sample Text", "OCR识别示例"}

const placeholderConfidence = 0.9

// PlaceholderEngine emits fixed sample lines laid out top to bottom. It keeps
// the pipeline usable when no recognition library is installed.
type PlaceholderEngine struct{}

// NewPlaceholderEngine creates the deterministic sample engine
func NewPlaceholderEngine() *PlaceholderEngine {
	return &PlaceholderEngine{}
}

func (e *PlaceholderEngine) Name() string {
	return EnginePlaceholder
}

// Detect returns the sample lines whose boxes fit inside the image
func (e *PlaceholderEngine) Detect(ctx context.Context, img *Image) ([]TextBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blocks := make([]TextBlock, 0, len(placeholderLines))
	for i, text := range placeholderLines {
		x1 := 50
		y1 := 50 + i*60
		x2 := x1 + utf8.RuneCountInString(text)*20
		y2 := y1 + 40

		if x2 > img.Width || y2 > img.Height {
			continue
		}

		blocks = append(blocks, TextBlock{
			Text:       text,
			BBox:       BBox{x1, y1, x2, y2},
			Confidence: placeholderConfidence,
		})
	}
	return blocks, nil
}
