package effects

import (
	"image"

	"github.com/skip2/go-qrcode"
)

// NewQRBadge кодирует content в квадратный QR-код size×size.
func NewQRBadge(content string, size int) (image.Image, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return q.Image(size), nil
}

// BadgeSize - сторона QR-значка для холста: шестая часть высоты.
func BadgeSize(canvas image.Rectangle) int {
	return max(32, canvas.Dy()/6)
}

func badgeMargin(canvas image.Rectangle) int {
	return canvas.Dy() / 40
}

// BadgeRect размещает значок size в правом нижнем углу холста с отступом margin.
func BadgeRect(canvas image.Rectangle, size image.Point, margin int) image.Rectangle {
	br := canvas.Max.Sub(image.Pt(margin, margin))
	tl := br.Sub(size)
	if tl.X < canvas.Min.X {
		tl.X = canvas.Min.X
	}
	if tl.Y < canvas.Min.Y {
		tl.Y = canvas.Min.Y
	}
	return image.Rectangle{Min: tl, Max: br}
}
