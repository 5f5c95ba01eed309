/**
 * File classification for the file service
 *
 * Classifies uploads by extension, guards the upload allow-list and sniffs
 * MIME types from magic bytes.
 */

package preprocess

import (
	"bytes"
	"mime"
	"path/filepath"
	"sort"
	"strings"
)

// File types
const (
	TypeImage        = "image"
	TypeDocument     = "document"
	TypePresentation = "presentation"
	TypeUnknown      = "unknown"
)

var typeExtensions = map[string][]string{
	TypeImage:        {".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff"},
	TypeDocument:     {".pdf", ".docx", ".doc", ".txt"},
	TypePresentation: {".pptx", ".ppt"},
}

var allowedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true, ".txt": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".tiff": true,
}

// Extension returns the lower-cased extension of filename including the dot
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// FileType classifies filename by its extension
func FileType(filename string) string {
	ext := Extension(filename)
	for fileType, exts := range typeExtensions {
		for _, e := range exts {
			if e == ext {
				return fileType
			}
		}
	}
	return TypeUnknown
}

// IsAllowed reports whether uploads with this extension are accepted
func IsAllowed(filename string) bool {
	return allowedExtensions[Extension(filename)]
}

// AllowedExtensions returns the accepted upload extensions, sorted
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

var extensionMimeTypes = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".doc":  "application/msword",
	".ppt":  "application/vnd.ms-powerpoint",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".txt":  "text/plain; charset=utf-8",
}

// DetectMimeType sniffs data first and falls back to the extension.
// Containers (ZIP, OLE) are refined by extension.
func DetectMimeType(filename string, data []byte) string {
	ext := Extension(filename)
	sniffed := detectMimeTypeFromMagicBytes(data)

	switch sniffed {
	case "application/zip", "application/msword":
		if byExt, ok := extensionMimeTypes[ext]; ok {
			return byExt
		}
		return sniffed
	case "":
	default:
		return sniffed
	}

	if byExt, ok := extensionMimeTypes[ext]; ok {
		return byExt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

// detectMimeTypeFromMagicBytes recognises the formats the service accepts
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return "application/pdf"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return "image/webp"
	case bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}), bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return "image/tiff"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	case bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}):
		// DOCX, PPTX and plain ZIP all look alike here
		return "application/zip"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}):
		// Legacy Office compound file: DOC, XLS or PPT
		return "application/msword"
	}

	return ""
}
