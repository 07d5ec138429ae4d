package frame

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xdraw "golang.org/x/image/draw"
)

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
)

// stripes строит изображение из трех полос: первая и последняя по `edge`
// пикселей, середина зеленая. vertical=true режет по оси Y.
func stripes(w, h, edge int, vertical bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pos, size := x, w
			if vertical {
				pos, size = y, h
			}
			switch {
			case pos < edge:
				img.SetRGBA(x, y, red)
			case pos >= size-edge:
				img.SetRGBA(x, y, blue)
			default:
				img.SetRGBA(x, y, green)
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func assertSolid(t *testing.T, img *image.RGBA, want color.RGBA) {
	t.Helper()
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			if got := img.RGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestNormalize_ExactCanvas(t *testing.T) {
	n := NewNormalizer(32, 18)

	for _, size := range []image.Point{{640, 480}, {100, 400}, {1920, 1080}, {7, 3}} {
		data := encodePNG(t, image.NewRGBA(image.Rect(0, 0, size.X, size.Y)))
		f, err := n.Normalize(data)
		require.NoError(t, err, "size %v", size)
		assert.Equal(t, 32, f.Width())
		assert.Equal(t, 18, f.Height())
	}
}

func TestNormalize_WiderSourceLosesSideMargins(t *testing.T) {
	// 320x90 -> центральные 160x90 зеленые
	data := encodePNG(t, stripes(320, 90, 80, false))

	f, err := NewNormalizer(32, 18, WithScaler(xdraw.NearestNeighbor)).Normalize(data)
	require.NoError(t, err)
	assertSolid(t, f.Image, green)
}

func TestNormalize_TallerSourceLosesTopBottom(t *testing.T) {
	// 160x290 -> центральные 160x90 зеленые
	data := encodePNG(t, stripes(160, 290, 100, true))

	f, err := NewNormalizer(32, 18, WithScaler(xdraw.NearestNeighbor)).Normalize(data)
	require.NoError(t, err)
	assertSolid(t, f.Image, green)
}

func TestNormalize_Undecodable(t *testing.T) {
	n := NewNormalizer(32, 18)

	for name, data := range map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not an image"),
		"html":      []byte("<html><body>404</body></html>"),
		"truncated": encodePNG(t, stripes(64, 36, 8, false))[:40],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := n.Normalize(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUndecodable))
		})
	}
}

func TestNormalize_PixelLimit(t *testing.T) {
	data := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 20, 20)))

	_, err := NewNormalizer(32, 18, WithMaxPixels(100)).Normalize(data)
	require.ErrorIs(t, err, ErrUndecodable)
	assert.Contains(t, err.Error(), "20x20")

	f, err := NewNormalizer(32, 18, WithMaxPixels(400)).Normalize(data)
	require.NoError(t, err)
	assert.Equal(t, 32, f.Width())

	_, err = NewNormalizer(32, 18, WithMaxPixels(0)).Normalize(data)
	require.NoError(t, err)
}

func TestCheckPixels(t *testing.T) {
	assert.NoError(t, checkPixels(10_000, 10_000, DefaultMaxPixels))
	assert.Error(t, checkPixels(10_001, 10_000, DefaultMaxPixels))
	assert.Error(t, checkPixels(1<<20, 1<<20, DefaultMaxPixels))
}

func TestCenterCrop(t *testing.T) {
	tests := []struct {
		name string
		in   image.Rectangle
		want image.Rectangle
	}{
		{"exact", image.Rect(0, 0, 1920, 1080), image.Rect(0, 0, 1920, 1080)},
		{"wide", image.Rect(0, 0, 400, 90), image.Rect(120, 0, 280, 90)},
		{"tall", image.Rect(0, 0, 160, 290), image.Rect(0, 100, 160, 190)},
		{"4:3", image.Rect(0, 0, 640, 480), image.Rect(0, 60, 640, 420)},
		{"offset bounds", image.Rect(10, 10, 410, 100), image.Rect(130, 10, 290, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CenterCrop(tt.in, 16, 9))
		})
	}
}

func TestApplyOrientation(t *testing.T) {
	// 3x2: верхний левый красный, нижний правый синий
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(0, 0, red)
	src.SetRGBA(2, 1, blue)

	tests := []struct {
		o      int
		size   image.Point
		redAt  image.Point
		blueAt image.Point
	}{
		{2, image.Pt(3, 2), image.Pt(2, 0), image.Pt(0, 1)},
		{3, image.Pt(3, 2), image.Pt(2, 1), image.Pt(0, 0)},
		{4, image.Pt(3, 2), image.Pt(0, 1), image.Pt(2, 0)},
		{5, image.Pt(2, 3), image.Pt(0, 0), image.Pt(1, 2)},
		{6, image.Pt(2, 3), image.Pt(1, 0), image.Pt(0, 2)},
		{7, image.Pt(2, 3), image.Pt(1, 2), image.Pt(0, 0)},
		{8, image.Pt(2, 3), image.Pt(0, 2), image.Pt(1, 0)},
	}

	for _, tt := range tests {
		got := applyOrientation(src, tt.o)
		assert.Equal(t, tt.size, got.Rect.Size(), "orientation %d", tt.o)
		assert.Equal(t, red, got.RGBAAt(tt.redAt.X, tt.redAt.Y), "orientation %d red", tt.o)
		assert.Equal(t, blue, got.RGBAAt(tt.blueAt.X, tt.blueAt.Y), "orientation %d blue", tt.o)
	}
}

func TestFrameClone(t *testing.T) {
	f := &Frame{Image: stripes(4, 2, 1, false)}
	c := f.Clone()

	c.Image.SetRGBA(0, 0, blue)
	assert.Equal(t, red, f.Image.RGBAAt(0, 0))
	assert.Equal(t, f.Bounds(), c.Bounds())
}
