package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	cache "github.com/Code-Hex/go-generics-cache"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/kenburns/internal/effects"
	"github.com/ivlev/kenburns/internal/frame"
	"github.com/ivlev/kenburns/internal/source"
)

var ErrNoValidSegments = errors.New("no valid segments")

type Normalizer interface {
	Normalize(data []byte) (*frame.Frame, error)
}

type Sequencer struct {
	fetcher    source.Fetcher
	normalizer Normalizer
	planner    effects.MotionPlanner
	segment    float64
	workers    int
	fallback   string
	logger     *slog.Logger
}

type Option func(*Sequencer)

// WithSegmentDuration задает номинальную длительность сегмента (по умолчанию 4 с).
func WithSegmentDuration(d float64) Option {
	return func(s *Sequencer) { s.segment = d }
}

// WithWorkers задает число одновременно загружаемых кандидатов.
func WithWorkers(n int) Option {
	return func(s *Sequencer) { s.workers = max(1, n) }
}

// WithFallback задает изображение, которое используется, если список кандидатов пуст.
func WithFallback(location string) Option {
	return func(s *Sequencer) { s.fallback = location }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSequencer(fetcher source.Fetcher, normalizer Normalizer, planner effects.MotionPlanner, opts ...Option) *Sequencer {
	s := &Sequencer{
		fetcher:    fetcher,
		normalizer: normalizer,
		planner:    planner,
		segment:    4.0,
		workers:    1,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type resolution struct {
	frame *frame.Frame
	err   error
}

// Build заполняет total секунд сегментами длительностью S, перебирая кандидатов
// по порядку и возвращаясь к началу списка, пока покрытие меньше total.
// Неудачные кандидаты пропускаются без сдвига времени. Проход без единого
// нового сегмента завершает построение. Последний сегмент не обрезается.
func (s *Sequencer) Build(ctx context.Context, total float64, locations []string) (*Timeline, error) {
	cands := source.Candidates(locations)
	if len(cands) == 0 && s.fallback != "" {
		s.logger.Warn("список изображений пуст, используется запасное изображение", "location", s.fallback)
		cands = source.Candidates([]string{s.fallback})
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: no image candidates", ErrNoValidSegments)
	}

	// Результат разрешения по расположению: повторный проход не загружает заново,
	// а отклоненный кандидат остается отклоненным до конца запуска.
	memo := cache.New[string, resolution]()
	tl := &Timeline{SegmentDuration: s.segment}

	covered := func() float64 { return float64(len(tl.Segments)) * s.segment }

	for covered() < total {
		added := 0

		for start := 0; start < len(cands) && covered() < total; start += s.workers {
			batch := cands[start:min(start+s.workers, len(cands))]
			if err := s.resolveBatch(ctx, batch, memo); err != nil {
				return nil, err
			}

			for _, c := range batch {
				if covered() >= total {
					break
				}
				res, _ := memo.Get(c.Location)
				if res.err != nil {
					continue
				}

				// Повторы одного кандидата ссылаются на общий кадр только для чтения
				idx := len(tl.Segments)
				tl.Segments = append(tl.Segments, Segment{
					Index:     idx,
					StartTime: float64(idx) * s.segment,
					Duration:  s.segment,
					Source:    c,
					Motion:    s.planner.Plan(idx, res.frame),
					Frame:     res.frame,
				})
				added++
			}
		}

		if added == 0 {
			break
		}
	}

	if len(tl.Segments) == 0 {
		return nil, fmt.Errorf("%w: all %d candidates rejected", ErrNoValidSegments, len(cands))
	}

	s.logger.Info("таймлайн построен",
		"segments", len(tl.Segments),
		"visual_duration", tl.Duration(),
		"audio_duration", total,
	)
	return tl, nil
}

// resolveBatch загружает и нормализует еще не разрешенные расположения пакета
// параллельно (не более workers одновременно) и сохраняет результаты в memo
// в порядке кандидатов.
func (s *Sequencer) resolveBatch(ctx context.Context, batch []source.Candidate, memo *cache.Cache[string, resolution]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var pending []source.Candidate
	seen := make(map[string]bool)
	for _, c := range batch {
		if _, ok := memo.Get(c.Location); ok || seen[c.Location] {
			continue
		}
		seen[c.Location] = true
		pending = append(pending, c)
	}
	if len(pending) == 0 {
		return nil
	}

	results := make([]resolution, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range pending {
		g.Go(func() error {
			results[i] = s.resolve(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for i, c := range pending {
		if err := results[i].err; err != nil {
			s.logger.Warn("кандидат отклонен",
				"candidate", c.Index,
				"location", c.Location,
				"error", err,
			)
		}
		memo.Set(c.Location, results[i])
	}
	return nil
}

func (s *Sequencer) resolve(ctx context.Context, c source.Candidate) resolution {
	data, err := s.fetcher.Fetch(ctx, c.Location)
	if err != nil {
		return resolution{err: err}
	}
	f, err := s.normalizer.Normalize(data)
	if err != nil {
		return resolution{err: err}
	}
	return resolution{frame: f}
}
