// Package timeline раскладывает кандидатов-изображений по времени озвучки.
package timeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/ivlev/kenburns/internal/effects"
	"github.com/ivlev/kenburns/internal/frame"
	"github.com/ivlev/kenburns/internal/source"
)

// Segment - интервал показа одного кадра. После построения не изменяется.
// Frame может быть общим для нескольких сегментов одного кандидата и
// только читается; кодировщик получает собственную копию.
type Segment struct {
	Index     int
	StartTime float64
	Duration  float64
	Source    source.Candidate
	Motion    effects.Motion
	Frame     *frame.Frame
}

func (s Segment) End() float64 { return s.StartTime + s.Duration }

type Timeline struct {
	Segments        []Segment
	SegmentDuration float64
}

// Duration - длина видеоряда без переходов: конец последнего сегмента.
func (t *Timeline) Duration() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End()
}

// ReleaseFrame отпускает пиксели сегмента i после того, как его клип закодирован.
func (t *Timeline) ReleaseFrame(i int) {
	t.Segments[i].Frame = nil
}

const epsilon = 1e-9

var ErrInvalidTimeline = errors.New("invalid timeline")

// Validate проверяет непрерывность: первый сегмент начинается в 0,
// каждый следующий - ровно в конце предыдущего.
func (t *Timeline) Validate() error {
	if len(t.Segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidTimeline)
	}
	for i, s := range t.Segments {
		if s.Index != i {
			return fmt.Errorf("%w: segment %d has index %d", ErrInvalidTimeline, i, s.Index)
		}
		if s.Duration <= 0 {
			return fmt.Errorf("%w: segment %d has non-positive duration %.3f", ErrInvalidTimeline, i, s.Duration)
		}
		if s.Frame == nil {
			return fmt.Errorf("%w: segment %d has no frame", ErrInvalidTimeline, i)
		}
		want := 0.0
		if i > 0 {
			want = t.Segments[i-1].End()
		}
		if math.Abs(s.StartTime-want) > epsilon {
			return fmt.Errorf("%w: segment %d starts at %.6f, want %.6f", ErrInvalidTimeline, i, s.StartTime, want)
		}
	}
	return nil
}
