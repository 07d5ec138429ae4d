package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ivlev/kenburns/internal/system"
)

var ErrExportFailed = errors.New("export failed")

// FFmpegError хранит аргументы и stderr упавшего процесса ffmpeg.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg: %v: %s", e.Err, lastLines(e.Stderr, 5))
}

func (e *FFmpegError) Unwrap() error { return e.Err }

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

func runFFmpeg(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// qualityArgs - параметры качества в зависимости от энкодера.
func qualityArgs(codec string, quality int) ffmpeg.KwArgs {
	if quality <= 0 {
		quality = system.DefaultQuality(codec)
	}
	switch codec {
	case "h264_videotoolbox":
		// VideoToolbox не везде поддерживает -q:v, поэтому битрейт: 75 -> 7.5 Мбит/с
		return ffmpeg.KwArgs{"b:v": fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return ffmpeg.KwArgs{"cq": quality}
	default: // libx264
		return ffmpeg.KwArgs{"crf": quality, "preset": "medium"}
	}
}

func secs(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

// frameSecs округляет вниз до микросекунды, чтобы момент на сетке кадров
// не сдвигался на следующий кадр.
func frameSecs(v float64) string {
	return fmt.Sprintf("%.6f", math.Floor(v*1e6+1e-6)/1e6)
}

// SnapToFrames округляет длительность до целого числа кадров (не меньше
// одного кадра для положительной длительности).
func SnapToFrames(d float64, fps int) float64 {
	if d <= 0 || fps <= 0 {
		return d
	}
	return float64(max(1, int(math.Round(d*float64(fps))))) / float64(fps)
}
