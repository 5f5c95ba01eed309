package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	// Decoders for every accepted image extension
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
)

// ThumbnailQuality is the JPEG quality used for thumbnails
const ThumbnailQuality = 85

// ImageInfo describes a decoded image header
type ImageInfo struct {
	Width           int
	Height          int
	Format          string
	Mode            string
	HasTransparency bool
}

// ToMap renders the info the way it is stored on a file record
func (i *ImageInfo) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"width":            i.Width,
		"height":           i.Height,
		"format":           i.Format,
		"mode":             i.Mode,
		"has_transparency": i.HasTransparency,
	}
}

// InspectImage reads dimensions and color model without decoding pixels
func InspectImage(data []byte) (*ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}

	mode, transparent := colorMode(cfg.ColorModel)
	return &ImageInfo{
		Width:           cfg.Width,
		Height:          cfg.Height,
		Format:          format,
		Mode:            mode,
		HasTransparency: transparent,
	}, nil
}

// colorMode names a color model using the usual single-letter mode names
func colorMode(m color.Model) (string, bool) {
	switch m {
	case color.GrayModel:
		return "L", false
	case color.Gray16Model:
		return "I;16", false
	case color.RGBAModel, color.NRGBAModel:
		return "RGBA", true
	case color.RGBA64Model, color.NRGBA64Model:
		return "RGBA", true
	case color.YCbCrModel:
		return "RGB", false
	case color.CMYKModel:
		return "CMYK", false
	case color.AlphaModel, color.Alpha16Model:
		return "LA", true
	}

	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a < 0xffff {
				return "P", true
			}
		}
		return "P", false
	}

	return "RGB", false
}

// NeedsThumbnail reports whether either side of info exceeds maxSide
func NeedsThumbnail(info *ImageInfo, maxSide int) bool {
	return maxSide > 0 && (info.Width > maxSide || info.Height > maxSide)
}

// Thumbnail decodes data and scales it to fit within maxSide, keeping the
// aspect ratio, and encodes the result as JPEG
func Thumbnail(data []byte, maxSide int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), maxSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; composite onto white
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func fitWithin(w, h, maxSide int) (int, int) {
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		nh := h * maxSide / w
		if nh < 1 {
			nh = 1
		}
		return maxSide, nh
	}
	nw := w * maxSide / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxSide
}
