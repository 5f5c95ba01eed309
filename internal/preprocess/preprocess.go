package preprocess

import (
	"context"
	"fmt"
)

// ThumbnailFile is a derived image to be stored next to the upload
type ThumbnailFile struct {
	Name string
	Data []byte
}

// ThumbnailName returns the name used for the thumbnail of an upload
func ThumbnailName(safeFilename string) string {
	return "thumb_" + safeFilename + ".jpg"
}

// Preprocessor inspects uploads by file type
type Preprocessor struct {
	pdf          PDFInspector
	thumbnailMax int
}

// NewPreprocessor creates a preprocessor. pdf may be nil, in which case PDF
// uploads are reported without page information.
func NewPreprocessor(pdf PDFInspector, thumbnailMax int) *Preprocessor {
	if thumbnailMax <= 0 {
		thumbnailMax = 2048
	}
	return &Preprocessor{
		pdf:          pdf,
		thumbnailMax: thumbnailMax,
	}
}

// Process returns the process info for an upload and, for large images, a
// thumbnail to store. Failures of the inspection itself are returned as err.
func (p *Preprocessor) Process(ctx context.Context, fileType, safeFilename string, data []byte) (map[string]interface{}, *ThumbnailFile, error) {
	switch fileType {
	case TypeImage:
		return p.processImage(safeFilename, data)
	case TypeDocument:
		info, err := p.processDocument(ctx, safeFilename, data)
		if err != nil {
			return nil, nil, err
		}
		return info, nil, nil
	default:
		return map[string]interface{}{"message": "no preprocessing required"}, nil, nil
	}
}

func (p *Preprocessor) processImage(safeFilename string, data []byte) (map[string]interface{}, *ThumbnailFile, error) {
	info, err := InspectImage(data)
	if err != nil {
		return nil, nil, err
	}
	out := info.ToMap()

	if !NeedsThumbnail(info, p.thumbnailMax) {
		return out, nil, nil
	}

	thumb, err := Thumbnail(data, p.thumbnailMax)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create thumbnail: %w", err)
	}
	return out, &ThumbnailFile{Name: ThumbnailName(safeFilename), Data: thumb}, nil
}

func (p *Preprocessor) processDocument(ctx context.Context, safeFilename string, data []byte) (map[string]interface{}, error) {
	var (
		info *DocumentInfo
		err  error
	)

	switch Extension(safeFilename) {
	case ".pdf":
		if p.pdf == nil {
			return (&DocumentInfo{}).ToMap(), nil
		}
		info, err = InspectPDF(ctx, p.pdf, data)
	case ".docx":
		info, err = InspectDOCX(data)
	case ".txt":
		info = InspectText(data)
	default:
		info = &DocumentInfo{}
	}
	if err != nil {
		return nil, err
	}

	return info.ToMap(), nil
}
