package preprocess

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileType(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"scan.PNG", TypeImage},
		{"photo.jpeg", TypeImage},
		{"report.pdf", TypeDocument},
		{"notes.txt", TypeDocument},
		{"slides.pptx", TypePresentation},
		{"archive.zip", TypeUnknown},
		{"README", TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FileType(tt.name))
		})
	}
}

func TestIsAllowed(t *testing.T) {
	assert.True(t, IsAllowed("a.TIFF"))
	assert.True(t, IsAllowed("a.docx"))
	assert.False(t, IsAllowed("a.pptx"))
	assert.False(t, IsAllowed("a.exe"))
	assert.False(t, IsAllowed("noext"))
	assert.Len(t, AllowedExtensions(), 10)
}

func TestDetectMimeType(t *testing.T) {
	pngData := encodePNG(t, image.NewGray(image.Rect(0, 0, 2, 2)))

	assert.Equal(t, "image/png", DetectMimeType("renamed.jpg", pngData))
	assert.Equal(t, "application/pdf", DetectMimeType("x.pdf", []byte("%PDF-1.7\n")))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		DetectMimeType("x.docx", []byte{0x50, 0x4B, 0x03, 0x04, 0, 0}))
	assert.Equal(t, "application/zip", DetectMimeType("x.bin", []byte{0x50, 0x4B, 0x03, 0x04, 0, 0}))
	assert.Equal(t, "application/msword",
		DetectMimeType("x.doc", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}))
	assert.True(t, strings.HasPrefix(DetectMimeType("x.txt", []byte("hello world")), "text/plain"))
	assert.Equal(t, "application/octet-stream", DetectMimeType("x.unknownext", []byte("??")))
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestInspectImage(t *testing.T) {
	gray, err := InspectImage(encodePNG(t, image.NewGray(image.Rect(0, 0, 30, 20))))
	require.NoError(t, err)
	assert.Equal(t, &ImageInfo{Width: 30, Height: 20, Format: "png", Mode: "L"}, gray)

	rgba, err := InspectImage(encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, err)
	assert.Equal(t, "RGBA", rgba.Mode)
	assert.True(t, rgba.HasTransparency)

	palette := color.Palette{color.Black, color.Transparent}
	paletted, err := InspectImage(encodePNG(t, image.NewPaletted(image.Rect(0, 0, 4, 4), palette)))
	require.NoError(t, err)
	assert.Equal(t, "P", paletted.Mode)
	assert.True(t, paletted.HasTransparency)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil))
	ycbcr, err := InspectImage(jpg.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", ycbcr.Format)
	assert.Equal(t, "RGB", ycbcr.Mode)

	_, err = InspectImage([]byte("not an image"))
	assert.Error(t, err)
}

func TestThumbnail(t *testing.T) {
	data := encodePNG(t, image.NewGray(image.Rect(0, 0, 300, 100)))

	thumb, err := Thumbnail(data, 150)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 150, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{100, 50, 200, 100, 50},
		{3000, 100, 2048, 2048, 68},
		{100, 4096, 2048, 50, 2048},
		{10000, 1, 100, 100, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d", tt.w, tt.h), func(t *testing.T) {
			w, h := fitWithin(tt.w, tt.h, tt.max)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestInspectDOCX(t *testing.T) {
	var paras strings.Builder
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&paras, `<w:p><w:r><w:t>Para</w:t></w:r><w:r><w:t xml:space="preserve"> %d</w:t></w:r></w:p>`, i)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>` + paras.String() + `<w:p><w:pPr><w:sectPr/></w:pPr></w:p><w:sectPr/></w:body></w:document>`

	info, err := InspectDOCX(buildDOCX(t, doc))
	require.NoError(t, err)

	assert.Equal(t, 2, info.Pages)
	lines := strings.Split(strings.TrimSuffix(info.TextPreview, "\n"), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "Para 1", lines[0])
	assert.Equal(t, "Para 10", lines[9])

	_, err = InspectDOCX([]byte("not a zip"))
	assert.Error(t, err)
}

func TestInspectText(t *testing.T) {
	info := InspectText([]byte(strings.Repeat("字", 600)))
	assert.Equal(t, 500, len([]rune(info.TextPreview)))
	assert.Equal(t, 1, info.Pages)
}

type fakePDF struct {
	pages int
	text  []string
	err   error
}

func (f *fakePDF) Inspect(ctx context.Context, data []byte, maxPages int) (int, []string, error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	text := f.text
	if len(text) > maxPages {
		text = text[:maxPages]
	}
	return f.pages, text, nil
}

func TestInspectPDF(t *testing.T) {
	inspector := &fakePDF{pages: 5, text: []string{"one", "two", "three", "four", "five"}}

	info, err := InspectPDF(context.Background(), inspector, []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, 5, info.Pages)
	assert.Equal(t, "one\ntwo\nthree\n", info.TextPreview)

	_, err = InspectPDF(context.Background(), &fakePDF{err: fmt.Errorf("broken")}, []byte("%PDF"))
	assert.Error(t, err)
}

func TestPreprocessorProcess(t *testing.T) {
	ctx := context.Background()
	p := NewPreprocessor(&fakePDF{pages: 1, text: []string{"hello"}}, 100)

	t.Run("small image has no thumbnail", func(t *testing.T) {
		info, thumb, err := p.Process(ctx, TypeImage, "id_a.png", encodePNG(t, image.NewGray(image.Rect(0, 0, 50, 50))))
		require.NoError(t, err)
		assert.Nil(t, thumb)
		assert.Equal(t, 50, info["width"])
		assert.Equal(t, "png", info["format"])
	})

	t.Run("large image gets a thumbnail", func(t *testing.T) {
		_, thumb, err := p.Process(ctx, TypeImage, "id_a.png", encodePNG(t, image.NewGray(image.Rect(0, 0, 400, 50))))
		require.NoError(t, err)
		require.NotNil(t, thumb)
		assert.Equal(t, "thumb_id_a.png.jpg", thumb.Name)
		assert.NotEmpty(t, thumb.Data)
	})

	t.Run("pdf", func(t *testing.T) {
		info, _, err := p.Process(ctx, TypeDocument, "id_a.pdf", []byte("%PDF"))
		require.NoError(t, err)
		assert.Equal(t, 1, info["pages"])
		assert.Equal(t, "hello\n", info["text_preview"])
	})

	t.Run("legacy doc is reported without preview", func(t *testing.T) {
		info, _, err := p.Process(ctx, TypeDocument, "id_a.doc", []byte{0xD0, 0xCF})
		require.NoError(t, err)
		assert.Equal(t, 0, info["pages"])
	})

	t.Run("unknown type", func(t *testing.T) {
		info, _, err := p.Process(ctx, TypeUnknown, "id_a.bin", nil)
		require.NoError(t, err)
		assert.Contains(t, info, "message")
	})

	t.Run("broken image", func(t *testing.T) {
		_, _, err := p.Process(ctx, TypeImage, "id_a.png", []byte("garbage"))
		assert.Error(t, err)
	})
}
