package effects

import (
	"fmt"
	"image"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/kenburns/internal/frame"
	"github.com/ivlev/kenburns/internal/renderer"
)

// Effect рисует кадр анимации сегмента в момент t в заранее выделенный буфер.
type Effect interface {
	RenderInto(dst *image.RGBA, f *frame.Frame, m Motion, duration, t float64)
}

// Motion - параметры движения камеры в пределах одного сегмента.
type Motion struct {
	ZoomStart float64         `yaml:"zoom_start"`
	ZoomEnd   float64         `yaml:"zoom_end"`
	PanStart  renderer.Anchor `yaml:"pan_start"`
	PanEnd    renderer.Anchor `yaml:"pan_end"`
}

// Reversed меняет местами начало и конец движения (zoom-in -> zoom-out).
func (m Motion) Reversed() Motion {
	return Motion{
		ZoomStart: m.ZoomEnd,
		ZoomEnd:   m.ZoomStart,
		PanStart:  m.PanEnd,
		PanEnd:    m.PanStart,
	}
}

// Static сообщает, что первый и последний кадры сегмента совпадают.
func (m Motion) Static() bool {
	return m.ZoomStart == m.ZoomEnd && m.PanStart == m.PanEnd
}

// KenBurns - плавный зум/панорама по неподвижному кадру.
// Значение без состояния: результат зависит только от (кадр, движение, t).
type KenBurns struct {
	Scaler xdraw.Scaler
	// Badge, если задан, накладывается в правый нижний угол каждого кадра.
	Badge image.Image
}

func (k KenBurns) scaler() xdraw.Scaler {
	if k.Scaler == nil {
		return xdraw.CatmullRom
	}
	return k.Scaler
}

// Render выделяет новый буфер размера кадра и рисует в него момент t.
func (k KenBurns) Render(f *frame.Frame, m Motion, duration, t float64) *image.RGBA {
	dst := image.NewRGBA(f.Bounds())
	k.RenderInto(dst, f, m, duration, t)
	return dst
}

func (k KenBurns) RenderInto(dst *image.RGBA, f *frame.Frame, m Motion, duration, t float64) {
	progress := renderer.Progress(t, duration)
	crop := renderer.CropRect(f.Width(), f.Height(), m.ZoomStart, m.ZoomEnd, m.PanStart, m.PanEnd, progress)

	if crop == f.Bounds() && dst.Rect == f.Bounds() {
		copy(dst.Pix, f.Image.Pix)
	} else {
		k.scaler().Scale(dst, dst.Rect, f.Image, crop, xdraw.Src, nil)
	}

	if k.Badge != nil {
		b := k.Badge.Bounds()
		r := BadgeRect(dst.Rect, b.Size(), badgeMargin(dst.Rect))
		xdraw.Draw(dst, r, k.Badge, b.Min, xdraw.Over)
	}
}

// ParseScaler возвращает фильтр масштабирования по имени из конфигурации.
func ParseScaler(name string) (xdraw.Scaler, error) {
	switch strings.ToLower(name) {
	case "", "catmullrom":
		return xdraw.CatmullRom, nil
	case "bilinear":
		return xdraw.BiLinear, nil
	case "approx-bilinear":
		return xdraw.ApproxBiLinear, nil
	case "nearest":
		return xdraw.NearestNeighbor, nil
	default:
		return nil, fmt.Errorf("unknown resampler %q", name)
	}
}
