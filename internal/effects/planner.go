package effects

import (
	"math/rand"
	"strings"

	"github.com/ivlev/kenburns/internal/analyzer"
	"github.com/ivlev/kenburns/internal/frame"
	"github.com/ivlev/kenburns/internal/renderer"
)

// MotionPlanner выбирает движение камеры для сегмента.
type MotionPlanner interface {
	Plan(index int, f *frame.Frame) Motion
}

var randomAnchors = []renderer.Anchor{
	renderer.Center,
	renderer.TopLeft,
	renderer.TopRight,
	renderer.BottomLeft,
	renderer.BottomRight,
}

var cornerAnchors = map[string]renderer.Anchor{
	"top-left":     renderer.TopLeft,
	"top-right":    renderer.TopRight,
	"bottom-left":  renderer.BottomLeft,
	"bottom-right": renderer.BottomRight,
}

// Planner реализует режимы зума: center, углы, out-center, random,
// out-random, pan, smart (по фокусу из анализатора) и custom (явные якоря).
type Planner struct {
	Mode      string
	ZoomStart float64
	ZoomEnd   float64
	// Seed делает режимы random/out-random воспроизводимыми.
	Seed  int64
	Focus analyzer.FocusDetector
	// PanStart и PanEnd используются режимом custom.
	PanStart renderer.Anchor
	PanEnd   renderer.Anchor
}

func (p *Planner) Plan(index int, f *frame.Frame) Motion {
	mode := strings.ToLower(p.Mode)
	zoomIn := Motion{
		ZoomStart: p.ZoomStart,
		ZoomEnd:   p.ZoomEnd,
		PanStart:  renderer.Center,
		PanEnd:    renderer.Center,
	}

	switch mode {
	case "out-center":
		return zoomIn.Reversed()

	case "random", "out-random":
		r := rand.New(rand.NewSource(p.Seed + int64(index*99)))
		a := randomAnchors[r.Intn(len(randomAnchors))]
		m := zoomIn
		m.PanStart, m.PanEnd = a, a
		if mode == "out-random" {
			return m.Reversed()
		}
		return m

	case "pan":
		// Панорама при постоянном зуме; направление чередуется
		zoom := max(p.ZoomStart, p.ZoomEnd)
		if zoom <= 1 {
			zoom = 1.2
		}
		m := Motion{
			ZoomStart: zoom,
			ZoomEnd:   zoom,
			PanStart:  renderer.CenterLeft,
			PanEnd:    renderer.CenterRight,
		}
		if index%2 == 1 {
			return m.Reversed()
		}
		return m

	case "custom":
		return Motion{
			ZoomStart: p.ZoomStart,
			ZoomEnd:   p.ZoomEnd,
			PanStart:  p.PanStart,
			PanEnd:    p.PanEnd,
		}

	case "smart":
		if p.Focus != nil && f != nil {
			if focus, ok := p.Focus.Detect(f.Image); ok {
				zoomIn.PanEnd = anchorFor(focus)
			}
		}
		return zoomIn

	default:
		if a, ok := cornerAnchors[mode]; ok {
			zoomIn.PanStart, zoomIn.PanEnd = a, a
		}
		return zoomIn
	}
}

// anchorFor делит кадр на трети и выбирает ближайший к фокусу якорь.
func anchorFor(f analyzer.Focus) renderer.Anchor {
	a := renderer.Center
	switch {
	case f.X < 1.0/3:
		a.X = renderer.AlignLeft
	case f.X > 2.0/3:
		a.X = renderer.AlignRight
	}
	switch {
	case f.Y < 1.0/3:
		a.Y = renderer.AlignTop
	case f.Y > 2.0/3:
		a.Y = renderer.AlignBottom
	}
	return a
}

// ScriptedPlanner воспроизводит заранее записанные движения (например, из
// манифеста прошлого запуска). Сегменты вне сценария получают движение Fallback.
type ScriptedPlanner struct {
	Motions  []Motion
	Fallback MotionPlanner
}

func (s *ScriptedPlanner) Plan(index int, f *frame.Frame) Motion {
	if index >= 0 && index < len(s.Motions) {
		return s.Motions[index]
	}
	if s.Fallback != nil {
		return s.Fallback.Plan(index, f)
	}
	return Motion{ZoomStart: 1, ZoomEnd: 1, PanStart: renderer.Center, PanEnd: renderer.Center}
}
