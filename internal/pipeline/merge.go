package pipeline

import (
	"strings"

	"github.com/adverant/nexus/doctranslate/internal/ocr"
)

// FilterBlocks keeps blocks with non-blank text, preserving OCR order
func FilterBlocks(blocks []ocr.TextBlock) []ocr.TextBlock {
	kept := make([]ocr.TextBlock, 0, len(blocks))
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) != "" {
			kept = append(kept, b)
		}
	}
	return kept
}

// Lines returns the text of each block, untrimmed
func Lines(blocks []ocr.TextBlock) []string {
	lines := make([]string, len(blocks))
	for i, b := range blocks {
		lines[i] = b.Text
	}
	return lines
}

// Merge zips blocks with translations by position. When the lengths differ
// the result is truncated to the shorter one and partial is true.
func Merge(blocks []ocr.TextBlock, translations []string) (items []TranslationItem, partial bool) {
	n := min(len(blocks), len(translations))

	items = make([]TranslationItem, n)
	for i := 0; i < n; i++ {
		items[i] = TranslationItem{
			BBox:       blocks[i].BBox,
			Src:        blocks[i].Text,
			Tgt:        translations[i],
			Confidence: blocks[i].Confidence,
		}
	}

	return items, len(blocks) != len(translations)
}
