// Package frame приводит произвольные изображения к кадру фиксированного размера.
package frame

import (
	"image"
	"image/draw"
)

// Frame - нормализованный кадр ровно Width×Height пикселей.
// Кадр принадлежит одному сегменту; повторное использование требует Clone.
type Frame struct {
	Image *image.RGBA
}

func (f *Frame) Width() int  { return f.Image.Rect.Dx() }
func (f *Frame) Height() int { return f.Image.Rect.Dy() }

func (f *Frame) Bounds() image.Rectangle { return f.Image.Rect }

func (f *Frame) Clone() *Frame {
	dst := image.NewRGBA(f.Image.Rect)
	copy(dst.Pix, f.Image.Pix)
	return &Frame{Image: dst}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	return rgba
}
