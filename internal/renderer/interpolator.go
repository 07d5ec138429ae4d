package renderer

import (
	"fmt"
	"image"
	"strings"
)

// Align is an anchor position along one axis.
type Align string

const (
	AlignCenter Align = "center"
	AlignLeft   Align = "left"
	AlignRight  Align = "right"
	AlignTop    Align = "top"
	AlignBottom Align = "bottom"
)

// fraction maps an alignment to the share of free space before the crop:
// 0 for left/top, 0.5 for center, 1 for right/bottom.
func (a Align) fraction() float64 {
	switch a {
	case AlignLeft, AlignTop:
		return 0
	case AlignRight, AlignBottom:
		return 1
	default:
		return 0.5
	}
}

// Anchor pins the crop window on both axes.
type Anchor struct {
	X Align `yaml:"x"`
	Y Align `yaml:"y"`
}

var (
	Center      = Anchor{AlignCenter, AlignCenter}
	TopLeft     = Anchor{AlignLeft, AlignTop}
	TopRight    = Anchor{AlignRight, AlignTop}
	BottomLeft  = Anchor{AlignLeft, AlignBottom}
	BottomRight = Anchor{AlignRight, AlignBottom}
	CenterLeft  = Anchor{AlignLeft, AlignCenter}
	CenterRight = Anchor{AlignRight, AlignCenter}
)

func (a Anchor) String() string {
	if a.X == a.Y {
		return string(a.X)
	}
	return string(a.Y) + "-" + string(a.X)
}

// ParseAnchor accepts "center", a single side ("left", "bottom")
// or a corner in "vertical-horizontal" form ("top-left").
func ParseAnchor(s string) (Anchor, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	a := Center

	for _, part := range strings.Split(s, "-") {
		switch Align(part) {
		case AlignCenter:
		case AlignLeft, AlignRight:
			a.X = Align(part)
		case AlignTop, AlignBottom:
			a.Y = Align(part)
		default:
			return Center, fmt.Errorf("unknown anchor %q", s)
		}
	}
	return a, nil
}

// CameraState is the crop window at a specific moment
type CameraState struct {
	Zoom float64
	Rect image.Rectangle
}

// Smoothstep eases p (clamped to [0,1]) with zero velocity at both ends.
func Smoothstep(p float64) float64 {
	p = clamp(p, 0, 1)
	return p * p * (3 - 2*p)
}

// Progress returns eased progress of t within a segment of the given duration.
func Progress(t, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return Smoothstep(t / duration)
}

// Interpolate calculates the crop window for a w×h frame at eased progress.
// Zoom goes from zoomStart to zoomEnd; the crop origin moves from the
// position dictated by `from` to the one dictated by `to`, both evaluated
// against the current crop size.
func Interpolate(w, h int, zoomStart, zoomEnd float64, from, to Anchor, progress float64) CameraState {
	zoom := lerp(zoomStart, zoomEnd, progress)

	cw, ch := w, h
	if zoom > 1 {
		cw = max(1, int(float64(w)/zoom))
		ch = max(1, int(float64(h)/zoom))
	}

	freeX := float64(w - cw)
	freeY := float64(h - ch)
	x := int(lerp(from.X.fraction()*freeX, to.X.fraction()*freeX, progress))
	y := int(lerp(from.Y.fraction()*freeY, to.Y.fraction()*freeY, progress))
	x = clampInt(x, 0, w-cw)
	y = clampInt(y, 0, h-ch)

	return CameraState{Zoom: zoom, Rect: image.Rect(x, y, x+cw, y+ch)}
}

// CropRect is Interpolate reduced to the source rectangle.
func CropRect(w, h int, zoomStart, zoomEnd float64, from, to Anchor, progress float64) image.Rectangle {
	return Interpolate(w, h, zoomStart, zoomEnd, from, to, progress).Rect
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
