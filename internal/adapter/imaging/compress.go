package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	_ "image/gif"
	_ "image/png"

	"github.com/goldmanhw/storefront/internal/core/port"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var _ port.ImageCompressor = (*Compressor)(nil)

const (
	DefaultMaxWidth  = 1200
	DefaultMaxHeight = 1200
	DefaultQuality   = 80

	contentTypeJPEG = "image/jpeg"
)

// A Compressor re-encodes images as JPEG, scaled down to fit the
// bounding box. Images are never scaled up. Transparent areas become
// white.
type Compressor struct {
	maxWidth  int
	maxHeight int
	quality   int
}

// NewCompressor uses the Default values for zero arguments.
func NewCompressor(maxWidth, maxHeight, quality int) *Compressor {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Compressor{maxWidth, maxHeight, quality}
}

func (c *Compressor) Compress(r io.Reader) ([]byte, string, error) {
	const op = "Compressor.Compress"

	src, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%s: decode: %w", op, err)
	}

	sb := src.Bounds()
	w, h := fit(sb.Dx(), sb.Dy(), c.maxWidth, c.maxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, "", fmt.Errorf("%s: encode %s: %w", op, format, err)
	}
	return buf.Bytes(), contentTypeJPEG, nil
}

// fit keeps the aspect ratio of w x h within maxW x maxH.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	if w*maxH > h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}
