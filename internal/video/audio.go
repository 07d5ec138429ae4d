package video

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
)

var ErrAudioLoadFailed = errors.New("audio load failed")

type AudioTrack struct {
	Path     string
	Duration float64
}

// DurationProbe возвращает длительность медиафайла в секундах.
type DurationProbe func(ctx context.Context, path string) (float64, error)

// LoadAudio проверяет озвучку и определяет ее длительность.
func LoadAudio(ctx context.Context, path string, probe DurationProbe) (AudioTrack, error) {
	if path == "" {
		return AudioTrack{}, fmt.Errorf("%w: no audio path", ErrAudioLoadFailed)
	}
	if _, err := os.Stat(path); err != nil {
		return AudioTrack{}, fmt.Errorf("%w: %w", ErrAudioLoadFailed, err)
	}

	d, err := probe(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return AudioTrack{}, ctx.Err()
		}
		return AudioTrack{}, fmt.Errorf("%w: %s: %w", ErrAudioLoadFailed, path, err)
	}
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return AudioTrack{}, fmt.Errorf("%w: %s: invalid duration %v", ErrAudioLoadFailed, path, d)
	}

	return AudioTrack{Path: path, Duration: d}, nil
}
