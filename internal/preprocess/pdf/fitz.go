// Package pdf reads PDF page counts and text through MuPDF.
package pdf

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzInspector implements preprocess.PDFInspector with go-fitz
type FitzInspector struct{}

// NewFitzInspector creates a new MuPDF-backed inspector
func NewFitzInspector() *FitzInspector {
	return &FitzInspector{}
}

// Inspect opens data and extracts the text of up to maxPages pages
func (FitzInspector) Inspect(ctx context.Context, data []byte, maxPages int) (int, []string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()

	n := pageCount
	if maxPages >= 0 && n > maxPages {
		n = maxPages
	}

	text := make([]string, 0, n)
	for pageNum := 0; pageNum < n; pageNum++ {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}

		pageText, err := doc.Text(pageNum)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to extract text from page %d: %w", pageNum+1, err)
		}
		text = append(text, pageText)
	}

	return pageCount, text, nil
}
