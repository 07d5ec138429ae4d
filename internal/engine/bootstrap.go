package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/ivlev/kenburns/internal/analyzer"
	"github.com/ivlev/kenburns/internal/config"
	"github.com/ivlev/kenburns/internal/effects"
	"github.com/ivlev/kenburns/internal/frame"
	"github.com/ivlev/kenburns/internal/renderer"
	"github.com/ivlev/kenburns/internal/source"
	"github.com/ivlev/kenburns/internal/system"
	"github.com/ivlev/kenburns/internal/timeline"
	"github.com/ivlev/kenburns/internal/video"
)

// maxEncodeWorkers - разумный компромисс для большинства GPU (NVENC/VideoToolbox).
const maxEncodeWorkers = 4

// New собирает проект с реальными зависимостями по конфигурации.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*VideoProject, error) {
	if logger == nil {
		logger = slog.Default()
	}

	scaler, err := effects.ParseScaler(cfg.Resampler)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	fetcher, err := newRouter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	planner, err := newPlanner(cfg)
	if err != nil {
		return nil, err
	}

	kb := effects.KenBurns{Scaler: scaler}
	if cfg.QRCodeURL != "" {
		canvas := image.Rect(0, 0, cfg.Width, cfg.Height)
		kb.Badge, err = effects.NewQRBadge(cfg.QRCodeURL, effects.BadgeSize(canvas))
		if err != nil {
			return nil, fmt.Errorf("qr badge: %w", err)
		}
	}

	workers, encodeWorkers := workerCounts(cfg, logger)

	codec := cfg.VideoEncoder
	if codec == "" {
		codec = "libx264"
	}

	enc := &video.FFmpegEncoder{
		Codec:   codec,
		Quality: cfg.Quality,
		FPS:     cfg.FPS,
		Effect:  kb,
		Pool:    system.NewImagePool(),
	}

	p := NewVideoProject(cfg, nil, enc, nil, system.ProbeDuration, logger)
	p.EncodeWorkers = encodeWorkers
	p.Timeline = timeline.NewSequencer(
		fetcher,
		frame.NewNormalizer(cfg.Width, cfg.Height, frame.WithScaler(scaler), frame.WithDPI(cfg.DPI)),
		planner,
		timeline.WithSegmentDuration(p.SegmentDuration),
		timeline.WithWorkers(workers),
		timeline.WithFallback(cfg.FallbackImage),
		timeline.WithLogger(logger),
	)
	p.Composer = &video.Compositor{
		FPS:          cfg.FPS,
		Codec:        codec,
		Quality:      cfg.Quality,
		Transition:   cfg.TransitionType,
		Fade:         p.Fade,
		AudioBitrate: cfg.AudioBitrate,
		Logger:       logger,
	}

	return p, nil
}

func newRouter(ctx context.Context, cfg *config.Config) (*source.Router, error) {
	router := &source.Router{
		HTTP:    source.NewHTTPFetcher(cfg.FetchTimeout),
		File:    source.FileFetcher{},
		Timeout: cfg.FetchTimeout,
	}

	// Клиент S3 создается только если он нужен
	locations := append([]string{cfg.FallbackImage}, cfg.Images...)
	needsS3 := cfg.S3.Region != "" || cfg.S3.Endpoint != "" || lo.SomeBy(locations, func(l string) bool {
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(l)), "s3://")
	})
	if needsS3 {
		s3f, err := source.NewS3Fetcher(ctx, source.S3Options{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		router.S3 = s3f
	}

	return router, nil
}

func newPlanner(cfg *config.Config) (effects.MotionPlanner, error) {
	from, err := parseAnchor(cfg.PanStart)
	if err != nil {
		return nil, err
	}
	to, err := parseAnchor(cfg.PanEnd)
	if err != nil {
		return nil, err
	}

	planner := &effects.Planner{
		Mode:      cfg.ZoomMode,
		ZoomStart: cfg.ZoomStart,
		ZoomEnd:   cfg.ZoomEnd,
		Seed:      cfg.Seed,
		PanStart:  from,
		PanEnd:    to,
	}
	if cfg.ZoomMode == "smart" {
		planner.Focus = analyzer.NewContrastDetector()
	}

	if cfg.MotionScript == "" {
		return planner, nil
	}

	m, err := timeline.ReadManifest(cfg.MotionScript)
	if err != nil {
		return nil, fmt.Errorf("%w: motion script: %w", config.ErrInvalidConfig, err)
	}
	return &effects.ScriptedPlanner{Motions: m.Motions(), Fallback: planner}, nil
}

// parseAnchor разбирает якорь из конфигурации; пустое значение - центр.
func parseAnchor(s string) (renderer.Anchor, error) {
	if s == "" {
		return renderer.Center, nil
	}
	a, err := renderer.ParseAnchor(s)
	if err != nil {
		return renderer.Center, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	return a, nil
}

// workerCounts подбирает число воркеров загрузки и кодирования.
// Каждому воркеру нужно около трех буферов размера холста.
func workerCounts(cfg *config.Config, logger *slog.Logger) (workers, encode int) {
	workers, encode = cfg.Workers, cfg.EncodeWorkers
	if workers > 0 && encode > 0 {
		return workers, encode
	}

	res, err := system.Snapshot()
	if err != nil {
		logger.Warn("не удалось получить ресурсы системы", "error", err)
	}
	perWorker := uint64(cfg.Width) * uint64(cfg.Height) * 4 * 3
	suggested := system.SuggestWorkers(res, perWorker)

	if workers <= 0 {
		workers = suggested
	}
	if encode <= 0 {
		encode = min(maxEncodeWorkers, suggested)
	}
	logger.Debug("воркеры", "resolve", workers, "encode", encode, "cpus", res.CPUs)
	return workers, encode
}
