package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/adverant/nexus/doctranslate/internal/ocr"
)

// OCRProvider turns image bytes into ordered text blocks
type OCRProvider interface {
	Detect(ctx context.Context, filename string, data []byte) ([]ocr.TextBlock, error)
}

// TranslationProvider translates ordered lines; len(out) must equal len(lines)
type TranslationProvider interface {
	Translate(ctx context.Context, lines []string, targetLang, sourceLang string) ([]string, error)
}

// Stage is a step of the per-request state machine
type Stage string

const (
	StageReceived        Stage = "RECEIVED"
	StageSaved           Stage = "SAVED"
	StageOCRCalled       Stage = "OCR_CALLED"
	StageOCROK           Stage = "OCR_OK"
	StageOCRFailed       Stage = "OCR_FAILED"
	StageTranslateCalled Stage = "TRANSLATE_CALLED"
	StageTranslateOK     Stage = "TRANSLATE_OK"
	StageTranslateFailed Stage = "TRANSLATE_FAILED"
	StageMerged          Stage = "MERGED"
	StageResponded       Stage = "RESPONDED"
)

// ProcessRequest is one uploaded image to translate
type ProcessRequest struct {
	Filename   string
	Body       io.Reader
	TargetLang string
	SourceLang string

	// ReceivedAt anchors processing_time_ms; zero means "now"
	ReceivedAt time.Time
}

// TranslationItem pairs a source line with its translation
type TranslationItem struct {
	BBox       ocr.BBox `json:"bbox"`
	Src        string   `json:"src"`
	Tgt        string   `json:"tgt"`
	Confidence float64  `json:"conf"`
}

// ProcessResult is the orchestrator response body
type ProcessResult struct {
	ImageID          string            `json:"image_id"`
	LineCount        int               `json:"line_count"`
	Items            []TranslationItem `json:"items"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	Partial          bool              `json:"partial"`
	Warning          string            `json:"warning,omitempty"`
}
