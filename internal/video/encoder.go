package video

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ivlev/kenburns/internal/effects"
	"github.com/ivlev/kenburns/internal/frame"
	"github.com/ivlev/kenburns/internal/system"
)

// SegmentRequest описывает один клип: кадр, движение и длины.
// Duration - номинальная длительность анимации, ClipDuration - длина
// клипа с хвостом под переход (не меньше Duration).
type SegmentRequest struct {
	Index        int
	Frame        *frame.Frame
	Motion       effects.Motion
	Duration     float64
	ClipDuration float64
	Path         string
}

type Encoder interface {
	EncodeSegment(ctx context.Context, req SegmentRequest) error
}

// FFmpegEncoder рендерит кадры анимации в памяти и передает их в ffmpeg
// через stdin как rawvideo RGBA, исключая промежуточные файлы.
type FFmpegEncoder struct {
	Bin     string
	Codec   string
	Quality int
	FPS     int
	Effect  effects.Effect
	Pool    *system.ImagePool
}

func (e *FFmpegEncoder) bin() string {
	if e.Bin == "" {
		return "ffmpeg"
	}
	return e.Bin
}

// frameCount - число кадров клипа длительностью d секунд.
func frameCount(d float64, fps int) int {
	return max(1, int(math.Round(d*float64(fps))))
}

func (e *FFmpegEncoder) segmentArgs(w, h int, req SegmentRequest) []string {
	in := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", w, h),
		"framerate": e.FPS,
	})

	return in.Output(req.Path,
		ffmpeg.KwArgs{
			"c:v":      e.Codec,
			"pix_fmt":  "yuv420p",
			"r":        e.FPS,
			"frames:v": frameCount(req.ClipDuration, e.FPS),
		},
		qualityArgs(e.Codec, e.Quality),
	).OverWriteOutput().GetArgs()
}

func (e *FFmpegEncoder) EncodeSegment(ctx context.Context, req SegmentRequest) error {
	if req.ClipDuration < req.Duration {
		req.ClipDuration = req.Duration
	}
	bounds := req.Frame.Bounds()
	args := e.segmentArgs(bounds.Dx(), bounds.Dy(), req)

	cmd := exec.CommandContext(ctx, e.bin(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	n := frameCount(req.ClipDuration, e.FPS)
	var writeErr error
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		t := float64(i) / float64(e.FPS)

		buf := e.Pool.Get(bounds)
		e.Effect.RenderInto(buf, req.Frame, req.Motion, req.Duration, t)
		_, writeErr = stdin.Write(buf.Pix)
		e.Pool.Put(buf)

		if writeErr != nil {
			break
		}
	}
	stdin.Close()

	waitErr := cmd.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	if waitErr != nil {
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: waitErr}
	}
	if writeErr != nil {
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: fmt.Errorf("write raw error: %w", writeErr)}
	}
	return nil
}
