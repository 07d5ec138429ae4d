package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const epsilon = 1e-6

// Clip - закодированный сегмент. Start и Duration - номинальные значения
// сегмента на таймлайне, Tail - дополнительные секунды в конце клипа,
// поверх которых проигрывается переход к следующему.
type Clip struct {
	Path     string
	Start    float64
	Duration float64
	Tail     float64
}

type VideoAsset struct {
	Path       string
	FPS        int
	Duration   float64
	Segments   int
	LoopedTail float64
}

// Plan - раскладка финальной сборки.
type Plan struct {
	// Offsets - моменты начала xfade; пусто, если переходов нет.
	Offsets []float64
	Fade    float64
	// Visual - длина видеоряда до выравнивания (N·S на сетке кадров).
	Visual float64
	// Loop - сколько секунд последнего клипа повторить, чтобы догнать аудио.
	Loop  float64
	Final float64
}

// EffectiveFade уменьшает переход до половины сегмента, если он не короче сегмента.
func EffectiveFade(fade, segment float64) (float64, bool) {
	if fade >= segment {
		return segment / 2, true
	}
	return fade, false
}

// PlanComposition рассчитывает переходы и выравнивание длительности по
// фактическому числу кадров клипов (с тем же округлением, что у кодировщика).
// Переход на границе i начинается за длительность перехода до конца уже
// склеенного потока. Если видеоряд короче аудио, последний клип повторяется
// до длины аудио; если длиннее - остается как есть.
func PlanComposition(clips []Clip, fade, audio float64, fps int) (Plan, error) {
	if len(clips) == 0 {
		return Plan{}, errors.New("no clips")
	}
	if fps <= 0 {
		return Plan{}, fmt.Errorf("invalid fps %d", fps)
	}

	fadeFrames := 0
	if fade > 0 && len(clips) > 1 {
		fadeFrames = int(math.Round(fade * float64(fps)))
	}

	var p Plan
	total := 0
	for i, c := range clips {
		n := frameCount(c.Duration+c.Tail, fps)
		if i == 0 || fadeFrames == 0 {
			total += n
			continue
		}

		prev := clips[i-1]
		if tail := frameCount(prev.Duration+prev.Tail, fps) - frameCount(prev.Duration, fps); tail < fadeFrames {
			return Plan{}, fmt.Errorf("clip %d tail %d frames is shorter than fade %d frames", i-1, tail, fadeFrames)
		}
		offset := total - fadeFrames
		p.Offsets = append(p.Offsets, float64(offset)/float64(fps))
		total = offset + n
	}

	p.Fade = float64(fadeFrames) / float64(fps)
	p.Visual = float64(total) / float64(fps)
	if audio-p.Visual > epsilon {
		p.Loop = audio - p.Visual
	}
	p.Final = p.Visual + p.Loop

	return p, nil
}

type Compositor struct {
	Bin          string
	FPS          int
	Codec        string
	Quality      int
	Transition   string
	Fade         float64
	AudioBitrate string
	Logger       *slog.Logger
}

func (c *Compositor) bin() string {
	if c.Bin == "" {
		return "ffmpeg"
	}
	return c.Bin
}

func (c *Compositor) fade() float64 {
	if c.Transition == "" || c.Transition == "none" {
		return 0
	}
	return c.Fade
}

// buildArgs собирает граф: xfade (или concat) между клипами, при необходимости
// concat с зацикленным последним клипом, затем полное аудио без обрезки.
func (c *Compositor) buildArgs(plan Plan, clips []Clip, audio AudioTrack, out string) []string {
	videos := make([]*ffmpeg.Stream, len(clips))
	for i, cl := range clips {
		videos[i] = ffmpeg.Input(cl.Path).Video()
	}

	v := videos[0]
	switch {
	case len(plan.Offsets) > 0:
		for i := 1; i < len(videos); i++ {
			v = ffmpeg.Filter([]*ffmpeg.Stream{v, videos[i]}, "xfade", ffmpeg.Args{}, ffmpeg.KwArgs{
				"transition": c.Transition,
				"duration":   frameSecs(plan.Fade),
				"offset":     frameSecs(plan.Offsets[i-1]),
			})
		}
	case len(videos) > 1:
		v = ffmpeg.Concat(videos, ffmpeg.KwArgs{"v": 1, "a": 0})
	}

	if plan.Loop > 0 {
		tail := ffmpeg.Input(clips[len(clips)-1].Path, ffmpeg.KwArgs{
			"stream_loop": -1,
			"t":           secs(plan.Loop),
		}).Video()
		v = ffmpeg.Concat([]*ffmpeg.Stream{v, tail}, ffmpeg.KwArgs{"v": 1, "a": 0})
	}

	a := ffmpeg.Input(audio.Path).Audio()

	bitrate := c.AudioBitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	kw := ffmpeg.KwArgs{
		"c:v":      c.Codec,
		"pix_fmt":  "yuv420p",
		"r":        c.FPS,
		"c:a":      "aac",
		"b:a":      bitrate,
		"movflags": "+faststart",
	}
	if filepath.Ext(out) == "" || strings.HasSuffix(out, ".partial") {
		kw["f"] = "mp4"
	}

	return ffmpeg.Output([]*ffmpeg.Stream{v, a}, out, kw, qualityArgs(c.Codec, c.Quality)).
		OverWriteOutput().
		GetArgs()
}

// partialPath - временный путь рядом с итоговым файлом.
func partialPath(out string) string {
	dir, base := filepath.Split(out)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

// Compose склеивает клипы с переходами, подкладывает аудио и выравнивает
// длительность. Файл пишется во временный путь и переименовывается в out
// только при успехе.
func (c *Compositor) Compose(ctx context.Context, clips []Clip, audio AudioTrack, out string) (*VideoAsset, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	plan, err := PlanComposition(clips, c.fade(), audio.Duration, c.FPS)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	if plan.Loop > 0 {
		logger.Info("видеоряд короче аудио, последний сегмент будет зациклен",
			"visual", plan.Visual, "audio", audio.Duration, "loop", plan.Loop)
	}

	tmp := partialPath(out)
	args := c.buildArgs(plan, clips, audio, tmp)
	logger.Debug("ffmpeg compose", "args", strings.Join(args, " "))

	if err := runFFmpeg(ctx, c.bin(), args); err != nil {
		os.Remove(tmp)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	return &VideoAsset{
		Path:       out,
		FPS:        c.FPS,
		Duration:   plan.Final,
		Segments:   len(clips),
		LoopedTail: plan.Loop,
	}, nil
}
