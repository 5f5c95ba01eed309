package translation

import (
	"context"
	"fmt"
)

// PlaceholderEngine tags each line with the target language instead of translating it
type PlaceholderEngine struct{}

func NewPlaceholderEngine() *PlaceholderEngine {
	return &PlaceholderEngine{}
}

func (e *PlaceholderEngine) Name() string {
	return EnginePlaceholder
}

func (e *PlaceholderEngine) TranslateBatch(ctx context.Context, lines []string, targetLang, sourceLang string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		switch targetLang {
		case "zh":
			out[i] = "[中文翻译] " + line
		case "en":
			out[i] = "[English Translation] " + line
		default:
			out[i] = fmt.Sprintf("[%s] %s", targetLang, line)
		}
	}
	return out, nil
}
