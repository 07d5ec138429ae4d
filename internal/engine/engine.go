package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/kenburns/internal/config"
	"github.com/ivlev/kenburns/internal/system"
	"github.com/ivlev/kenburns/internal/timeline"
	"github.com/ivlev/kenburns/internal/video"
)

const benchmarkLog = "benchmark.log"

// TimelineBuilder раскладывает кандидатов по длительности озвучки.
type TimelineBuilder interface {
	Build(ctx context.Context, total float64, locations []string) (*timeline.Timeline, error)
}

// Composer склеивает закодированные клипы с аудио в итоговый файл.
type Composer interface {
	Compose(ctx context.Context, clips []video.Clip, audio video.AudioTrack, out string) (*video.VideoAsset, error)
}

type VideoProject struct {
	Config   *config.Config
	Timeline TimelineBuilder
	Encoder  video.Encoder
	Composer Composer
	Probe    video.DurationProbe
	Logger   *slog.Logger

	// EncodeWorkers - число одновременно кодируемых сегментов.
	EncodeWorkers int
	// SegmentDuration и Fade выровнены по сетке кадров; Fade == 0 - без переходов.
	SegmentDuration float64
	Fade            float64
}

func NewVideoProject(cfg *config.Config, tb TimelineBuilder, ve video.Encoder, comp Composer, probe video.DurationProbe, logger *slog.Logger) *VideoProject {
	if logger == nil {
		logger = slog.Default()
	}

	segment := video.SnapToFrames(cfg.SegmentDuration, cfg.FPS)
	fade := 0.0
	if cfg.TransitionsEnabled() {
		fade, _ = video.EffectiveFade(video.SnapToFrames(cfg.FadeDuration, cfg.FPS), segment)
		fade = video.SnapToFrames(fade, cfg.FPS)
		if fade >= segment {
			fade = 0
		}
	}

	return &VideoProject{
		Config:          cfg,
		Timeline:        tb,
		Encoder:         ve,
		Composer:        comp,
		Probe:           probe,
		Logger:          logger,
		EncodeWorkers:   max(1, cfg.EncodeWorkers),
		SegmentDuration: segment,
		Fade:            fade,
	}
}

// Run выполняет задание целиком: озвучка -> таймлайн -> клипы -> сборка.
func (p *VideoProject) Run(ctx context.Context) (*video.VideoAsset, error) {
	startTime := time.Now()
	cfg := p.Config

	audio, err := video.LoadAudio(ctx, cfg.AudioPath, p.Probe)
	if err != nil {
		return nil, err
	}

	if p.SegmentDuration != cfg.SegmentDuration {
		p.Logger.Warn("длительность сегмента выровнена по кадрам",
			"requested", cfg.SegmentDuration, "segment", p.SegmentDuration, "fps", cfg.FPS)
	}
	if cfg.TransitionsEnabled() && p.Fade != cfg.FadeDuration {
		p.Logger.Warn("переход изменен под сегмент и сетку кадров",
			"requested", cfg.FadeDuration, "fade", p.Fade)
	}

	p.Logger.Info("--- [PROJECT: KEN BURNS ENGINE] ---",
		"audio", audio.Path,
		"duration", audio.Duration,
		"candidates", len(cfg.Images),
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"fps", cfg.FPS,
		"segment", p.SegmentDuration,
		"fade", p.Fade,
	)

	resolveStart := time.Now()
	tl, err := p.Timeline.Build(ctx, audio.Duration, cfg.Images)
	if err != nil {
		return nil, err
	}
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	resolveTime := time.Since(resolveStart)

	if cfg.ManifestPath != "" {
		m := timeline.NewManifest(tl, audio.Path, audio.Duration, p.Fade)
		if err := timeline.WriteManifest(m, cfg.ManifestPath); err != nil {
			p.Logger.Warn("не удалось записать манифест", "path", cfg.ManifestPath, "error", err)
		}
	}

	// Отдельное пространство временных файлов на каждый запуск
	jobDir := filepath.Join(tempRoot(cfg.TempDir), "kenburns-"+uuid.NewString())
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	defer os.RemoveAll(jobDir)

	encodeStart := time.Now()
	clips, err := p.encodeSegments(ctx, tl, jobDir)
	if err != nil {
		return nil, err
	}
	encodeTime := time.Since(encodeStart)

	p.Logger.Info("сборка финального видео", "segments", len(clips), "output", cfg.OutputVideo)
	composeStart := time.Now()
	asset, err := p.Composer.Compose(ctx, clips, audio, cfg.OutputVideo)
	if err != nil {
		return nil, err
	}

	if cfg.ShowStats {
		p.report(system.Report{
			Build:        cfg.BuildVersion,
			Audio:        filepath.Base(audio.Path),
			Segments:     len(clips),
			FrameRate:    cfg.FPS,
			VideoSeconds: asset.Duration,
			Total:        time.Since(startTime),
			Resolve:      resolveTime,
			Encode:       encodeTime,
			Compose:      time.Since(composeStart),
		})
	}

	return asset, nil
}

// encodeSegments кодирует клипы параллельно (не более EncodeWorkers).
// Все клипы, кроме последнего, длиннее сегмента на длительность перехода.
func (p *VideoProject) encodeSegments(ctx context.Context, tl *timeline.Timeline, jobDir string) ([]video.Clip, error) {
	n := len(tl.Segments)
	clips := make([]video.Clip, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.EncodeWorkers)
	var done atomic.Int32

	for i, seg := range tl.Segments {
		if gctx.Err() != nil {
			break
		}

		tail := 0.0
		if i < n-1 {
			tail = p.Fade
		}
		clips[i] = video.Clip{
			Path:     filepath.Join(jobDir, fmt.Sprintf("s%03d.mp4", i)),
			Start:    seg.StartTime,
			Duration: seg.Duration,
			Tail:     tail,
		}

		req := video.SegmentRequest{
			Index:        i,
			Motion:       seg.Motion,
			Duration:     seg.Duration,
			ClipDuration: seg.Duration + tail,
			Path:         clips[i].Path,
		}
		shared := seg.Frame
		g.Go(func() error {
			// Копия живет только пока кодируется сегмент
			req.Frame = shared.Clone()
			if err := p.Encoder.EncodeSegment(gctx, req); err != nil {
				return fmt.Errorf("сегмент %d (%s): %w", i, seg.Source.Location, err)
			}
			tl.ReleaseFrame(i)
			p.Logger.Info("сегмент готов", "segment", done.Add(1), "of", n)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return clips, nil
}

func (p *VideoProject) report(r system.Report) {
	if res, err := system.Snapshot(); err == nil {
		r.Resources = res
	}
	r.Print(os.Stdout)

	if err := r.AppendLog(benchmarkLog, time.Now()); err != nil {
		p.Logger.Warn("не удалось записать benchmark.log", "error", err)
	}
}

func tempRoot(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	return dir
}
