package translation

import (
	"context"
	"sort"
)

// Engine translates an ordered batch of lines. Implementations should return
// one entry per input line; the Service repairs any that do not.
type Engine interface {
	Name() string
	TranslateBatch(ctx context.Context, lines []string, targetLang, sourceLang string) ([]string, error)
}

// Engine names
const (
	EngineOllama      = "ollama"
	EnginePlaceholder = "placeholder"
)

// ErrorSentinelPrefix marks a line that could not be translated
const ErrorSentinelPrefix = "[ERR] "

// Sentinel returns the per-line failure marker for src
func Sentinel(src string) string {
	return ErrorSentinelPrefix + src
}

// Request is the translation service request body
type Request struct {
	Lines      []string `json:"lines"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang"`
}

// Response is the translation service response body
type Response struct {
	Translations     []string `json:"translations"`
	Engine           string   `json:"engine"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

// AutoDetect is the source language value that asks the engine to detect it
const AutoDetect = "auto"

var languageNames = map[string]string{
	"zh":   "中文",
	"en":   "English",
	"ja":   "日本語",
	"ko":   "한국어",
	"fr":   "Français",
	"de":   "Deutsch",
	"es":   "Español",
	"auto": "自动检测",
}

// Languages returns the supported language codes and display names
func Languages() map[string]string {
	out := make(map[string]string, len(languageNames))
	for k, v := range languageNames {
		out[k] = v
	}
	return out
}

// LanguageCodes returns the supported target codes in stable order
func LanguageCodes() []string {
	codes := make([]string, 0, len(languageNames))
	for k := range languageNames {
		if k != AutoDetect {
			codes = append(codes, k)
		}
	}
	sort.Strings(codes)
	return codes
}

// LanguageName returns the display name for code, or code itself if unknown
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
