package frame

import (
	"errors"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

var ErrUndecodable = errors.New("undecodable image")

type Normalizer struct {
	width, height int
	scaler        xdraw.Scaler
	dpi           int
	maxPixels     int
}

type Option func(*Normalizer)

// WithScaler задает фильтр масштабирования (по умолчанию CatmullRom).
func WithScaler(s xdraw.Scaler) Option {
	return func(n *Normalizer) { n.scaler = s }
}

// WithDPI задает разрешение рендеринга PDF-кандидатов.
func WithDPI(dpi int) Option {
	return func(n *Normalizer) { n.dpi = dpi }
}

// WithMaxPixels ограничивает площадь исходного изображения; 0 - без предела.
func WithMaxPixels(pixels int) Option {
	return func(n *Normalizer) { n.maxPixels = pixels }
}

func NewNormalizer(width, height int, opts ...Option) *Normalizer {
	n := &Normalizer{
		width:     width,
		height:    height,
		scaler:    xdraw.CatmullRom,
		dpi:       150,
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize декодирует байты изображения, обрезает по центру до соотношения
// сторон холста и масштабирует до точного размера холста.
func (n *Normalizer) Normalize(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUndecodable)
	}

	img, err := decode(data, n.dpi, n.maxPixels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero-sized image", ErrUndecodable)
	}

	return n.Fit(img), nil
}

// Fit выполняет обрезку и масштабирование уже декодированного изображения.
func (n *Normalizer) Fit(img image.Image) *Frame {
	crop := CenterCrop(img.Bounds(), n.width, n.height)
	dst := image.NewRGBA(image.Rect(0, 0, n.width, n.height))
	n.scaler.Scale(dst, dst.Rect, img, crop, xdraw.Src, nil)
	return &Frame{Image: dst}
}

// CenterCrop возвращает максимальный прямоугольник внутри b с соотношением
// сторон aspectW:aspectH, отцентрированный по лишней оси.
func CenterCrop(b image.Rectangle, aspectW, aspectH int) image.Rectangle {
	w, h := b.Dx(), b.Dy()

	switch {
	case w*aspectH > aspectW*h:
		cw := h * aspectW / aspectH
		if cw < 1 {
			cw = 1
		}
		left := b.Min.X + (w-cw)/2
		return image.Rect(left, b.Min.Y, left+cw, b.Max.Y)
	case w*aspectH < aspectW*h:
		ch := w * aspectH / aspectW
		if ch < 1 {
			ch = 1
		}
		top := b.Min.Y + (h-ch)/2
		return image.Rect(b.Min.X, top, b.Max.X, top+ch)
	default:
		return b
	}
}
