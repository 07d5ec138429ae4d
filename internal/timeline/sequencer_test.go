package timeline

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/kenburns/internal/effects"
	"github.com/ivlev/kenburns/internal/frame"
	"github.com/ivlev/kenburns/internal/source"
)

// fakeFetcher отдает "ok" для известных расположений и ошибку для остальных.
type fakeFetcher struct {
	mu     sync.Mutex
	good   map[string]bool
	bad    map[string][]byte
	calls  map[string]int
	jitter bool
}

func newFakeFetcher(good ...string) *fakeFetcher {
	f := &fakeFetcher{good: map[string]bool{}, bad: map[string][]byte{}, calls: map[string]int{}}
	for _, g := range good {
		f.good[g] = true
	}
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if f.jitter {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}
	f.mu.Lock()
	f.calls[location]++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.good[location] {
		return []byte("ok"), nil
	}
	if data, ok := f.bad[location]; ok {
		return data, nil
	}
	return nil, source.ErrFetchFailed
}

type fakeNormalizer struct{}

func (fakeNormalizer) Normalize(data []byte) (*frame.Frame, error) {
	if string(data) != "ok" {
		return nil, frame.ErrUndecodable
	}
	return &frame.Frame{Image: image.NewRGBA(image.Rect(0, 0, 16, 9))}, nil
}

func newTestSequencer(f source.Fetcher, opts ...Option) *Sequencer {
	planner := &effects.Planner{Mode: "center", ZoomStart: 1, ZoomEnd: 1.2}
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewSequencer(f, fakeNormalizer{}, planner, opts...)
}

func sources(tl *Timeline) []string {
	var out []string
	for _, s := range tl.Segments {
		out = append(out, s.Source.Location)
	}
	return out
}

func TestBuild_AllSucceed(t *testing.T) {
	seq := newTestSequencer(newFakeFetcher("A", "B", "C"))

	tl, err := seq.Build(context.Background(), 10, []string{"A", "B", "C"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, sources(tl))
	for i, s := range tl.Segments {
		assert.Equal(t, float64(i)*4, s.StartTime)
		assert.Equal(t, 4.0, s.Duration)
		assert.NotNil(t, s.Frame)
	}
	assert.Equal(t, 12.0, tl.Duration())
	assert.NoError(t, tl.Validate())
}

func TestBuild_RotationReusesCandidates(t *testing.T) {
	fetcher := newFakeFetcher("A", "B")
	seq := newTestSequencer(fetcher)

	tl, err := seq.Build(context.Background(), 10, []string{"A", "B"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "A"}, sources(tl))
	assert.Equal(t, []float64{0, 4, 8}, []float64{tl.Segments[0].StartTime, tl.Segments[1].StartTime, tl.Segments[2].StartTime})
	assert.Equal(t, 1, fetcher.calls["A"], "rotation reuses the resolved frame")
	assert.Same(t, tl.Segments[0].Frame, tl.Segments[2].Frame, "rotation shares the resolved frame")
	assert.NotSame(t, tl.Segments[0].Frame, tl.Segments[1].Frame)
}

func TestBuild_LiveFramesBoundedByUniqueCandidates(t *testing.T) {
	fetcher := newFakeFetcher("A", "B")
	seq := newTestSequencer(fetcher, WithWorkers(2))

	// 150 сегментов из двух кандидатов
	tl, err := seq.Build(context.Background(), 600, []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, tl.Segments, 150)

	live := map[*image.RGBA]bool{}
	for _, s := range tl.Segments {
		live[s.Frame.Image] = true
	}
	assert.Len(t, live, 2)
}

func TestBuild_FailuresDoNotAdvanceTime(t *testing.T) {
	fetcher := newFakeFetcher("B", "C")
	seq := newTestSequencer(fetcher)

	tl, err := seq.Build(context.Background(), 10, []string{"A", "B", "C"})
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C", "B"}, sources(tl))
	assert.Equal(t, 0.0, tl.Segments[0].StartTime)
	assert.Equal(t, 1, tl.Segments[0].Source.Index)
	assert.Equal(t, 1, fetcher.calls["A"], "rejected candidate is not retried")
	assert.NoError(t, tl.Validate())
}

func TestBuild_UndecodableIsSkipped(t *testing.T) {
	fetcher := newFakeFetcher("B")
	fetcher.bad["A"] = []byte("<html>not an image</html>")
	seq := newTestSequencer(fetcher)

	tl, err := seq.Build(context.Background(), 6, []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "B"}, sources(tl))
}

func TestBuild_AllFail(t *testing.T) {
	seq := newTestSequencer(newFakeFetcher())

	_, err := seq.Build(context.Background(), 10, []string{"A", "B", "C"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoValidSegments))
}

func TestBuild_EmptyCandidates(t *testing.T) {
	seq := newTestSequencer(newFakeFetcher("fallback.jpg"))

	_, err := seq.Build(context.Background(), 10, nil)
	assert.True(t, errors.Is(err, ErrNoValidSegments))

	seq = newTestSequencer(newFakeFetcher("fallback.jpg"), WithFallback("fallback.jpg"))
	tl, err := seq.Build(context.Background(), 10, []string{" ", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"fallback.jpg", "fallback.jpg", "fallback.jpg"}, sources(tl))
}

func TestBuild_SegmentCountCoversAudio(t *testing.T) {
	seq := newTestSequencer(newFakeFetcher("A", "B", "C"), WithSegmentDuration(4))

	for _, d := range []float64{0.5, 4, 4.01, 8, 10, 11.99, 12, 60.2} {
		tl, err := seq.Build(context.Background(), d, []string{"A", "B", "C"})
		require.NoError(t, err)

		want := int(math.Ceil(d / 4))
		assert.Len(t, tl.Segments, want, "duration %v", d)
		assert.GreaterOrEqual(t, tl.Duration(), d)
		assert.Less(t, tl.Duration()-d, 4.0)
	}
}

func TestBuild_ConcurrentResolutionKeepsOrder(t *testing.T) {
	locs := []string{"a", "b", "x", "c", "d", "y", "e", "f", "g"}
	fetcher := newFakeFetcher("a", "b", "c", "d", "e", "f", "g")
	fetcher.jitter = true
	seq := newTestSequencer(fetcher, WithWorkers(4), WithSegmentDuration(1))

	tl, err := seq.Build(context.Background(), 10, locs)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "a", "b", "c"}, sources(tl))
	assert.NoError(t, tl.Validate())
	for _, loc := range locs {
		assert.Equal(t, 1, fetcher.calls[loc], loc)
	}
}

func TestBuild_DuplicateLocationsFetchedOnce(t *testing.T) {
	fetcher := newFakeFetcher("A")
	seq := newTestSequencer(fetcher, WithWorkers(3))

	tl, err := seq.Build(context.Background(), 12, []string{"A", "A", "A"})
	require.NoError(t, err)
	assert.Len(t, tl.Segments, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{tl.Segments[0].Source.Index, tl.Segments[1].Source.Index, tl.Segments[2].Source.Index})
	assert.Equal(t, 1, fetcher.calls["A"])
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSequencer(newFakeFetcher("A")).Build(ctx, 10, []string{"A"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBuild_MotionFromPlanner(t *testing.T) {
	planner := &effects.Planner{Mode: "pan", ZoomStart: 1, ZoomEnd: 1.2}
	seq := NewSequencer(newFakeFetcher("A"), fakeNormalizer{}, planner,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	tl, err := seq.Build(context.Background(), 8, []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, tl.Segments[0].Motion.Reversed(), tl.Segments[1].Motion)
}

func TestTimelineValidate(t *testing.T) {
	f := &frame.Frame{Image: image.NewRGBA(image.Rect(0, 0, 16, 9))}
	tl := &Timeline{SegmentDuration: 4, Segments: []Segment{
		{Index: 0, StartTime: 0, Duration: 4, Frame: f},
		{Index: 1, StartTime: 4, Duration: 4, Frame: f},
	}}
	assert.NoError(t, tl.Validate())

	tl.Segments[1].StartTime = 5
	assert.ErrorIs(t, tl.Validate(), ErrInvalidTimeline)

	tl.Segments[1].StartTime = 4
	tl.Segments[1].Duration = 0
	assert.ErrorIs(t, tl.Validate(), ErrInvalidTimeline)

	tl.Segments[1].Duration = 4
	tl.Segments[1].Index = 7
	assert.ErrorIs(t, tl.Validate(), ErrInvalidTimeline)

	tl.Segments[1].Index = 1
	tl.ReleaseFrame(0)
	assert.Nil(t, tl.Segments[0].Frame)
	assert.ErrorIs(t, tl.Validate(), ErrInvalidTimeline)

	assert.ErrorIs(t, (&Timeline{}).Validate(), ErrInvalidTimeline)
	assert.Equal(t, 0.0, (&Timeline{}).Duration())
}
