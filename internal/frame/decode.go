package frame

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var pdfMagic = []byte("%PDF")

// DefaultMaxPixels - предел площади исходного изображения до декодирования.
const DefaultMaxPixels = 100_000_000

func decode(data []byte, dpi, maxPixels int) (image.Image, error) {
	if bytes.HasPrefix(data, pdfMagic) {
		return decodePDF(data, dpi, maxPixels)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if format == "jpeg" || format == "tiff" {
		if o := orientation(data); o > 1 {
			img = applyOrientation(img, o)
		}
	}
	return img, nil
}

func checkPixels(w, h, maxPixels int) error {
	if maxPixels > 0 && int64(w)*int64(h) > int64(maxPixels) {
		return fmt.Errorf("image %dx%d exceeds %d pixels", w, h, maxPixels)
	}
	return nil
}

// decodePDF рендерит первую страницу документа.
func decodePDF(data []byte, dpi, maxPixels int) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	// Bound - размер страницы в пунктах (72 на дюйм)
	page, err := doc.Bound(0)
	if err != nil {
		return nil, err
	}
	scale := float64(dpi) / 72
	w, h := int(float64(page.Dx())*scale), int(float64(page.Dy())*scale)
	if err := checkPixels(w, h, maxPixels); err != nil {
		return nil, err
	}
	return doc.ImageDPI(0, float64(dpi))
}

// orientation возвращает EXIF Orientation (1..8) или 0, если тега нет.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 0
	}
	return o
}
