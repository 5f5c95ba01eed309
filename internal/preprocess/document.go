package preprocess

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	// PreviewChars bounds every text preview
	PreviewChars = 500
	// PreviewPDFPages is how many PDF pages feed the preview
	PreviewPDFPages = 3
	// PreviewParagraphs is how many DOCX paragraphs feed the preview
	PreviewParagraphs = 10
)

// DocumentInfo is the preprocessing result for a document
type DocumentInfo struct {
	Pages       int
	TextPreview string
}

// ToMap renders the info the way it is stored on a file record
func (d *DocumentInfo) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"pages":        d.Pages,
		"text_preview": d.TextPreview,
	}
}

// PDFInspector reads page count and page text from PDF bytes
type PDFInspector interface {
	Inspect(ctx context.Context, data []byte, maxPages int) (pages int, text []string, err error)
}

// InspectPDF counts pages and previews the text of the first pages
func InspectPDF(ctx context.Context, inspector PDFInspector, data []byte) (*DocumentInfo, error) {
	if inspector == nil {
		return nil, fmt.Errorf("no PDF inspector configured")
	}

	pages, text, err := inspector.Inspect(ctx, data, PreviewPDFPages)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, t := range text {
		sb.WriteString(t)
		sb.WriteString("\n")
	}

	return &DocumentInfo{
		Pages:       pages,
		TextPreview: truncateRunes(sb.String(), PreviewChars),
	}, nil
}

// InspectDOCX counts sections and previews the first paragraphs
func InspectDOCX(data []byte) (*DocumentInfo, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("docx has no word/document.xml")
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	sections, paragraphs, err := scanDocumentXML(rc, PreviewParagraphs)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, p := range paragraphs {
		sb.WriteString(p)
		sb.WriteString("\n")
	}

	return &DocumentInfo{
		Pages:       sections,
		TextPreview: truncateRunes(sb.String(), PreviewChars),
	}, nil
}

// scanDocumentXML streams WordprocessingML, counting w:sectPr elements and
// collecting the text of up to maxParagraphs w:p elements
func scanDocumentXML(r io.Reader, maxParagraphs int) (int, []string, error) {
	dec := xml.NewDecoder(r)

	var (
		sections   int
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, nil, fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sectPr":
				sections++
			case "p":
				inPara = true
				current.Reset()
			case "t":
				inText = inPara
			case "tab":
				if inPara {
					current.WriteString("\t")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if inPara && len(paragraphs) < maxParagraphs {
					paragraphs = append(paragraphs, current.String())
				}
				inPara = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	// A document always has at least its final section
	if sections == 0 {
		sections = 1
	}

	return sections, paragraphs, nil
}

// InspectText previews a plain-text file
func InspectText(data []byte) *DocumentInfo {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return &DocumentInfo{
		Pages:       1,
		TextPreview: truncateRunes(text, PreviewChars),
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
