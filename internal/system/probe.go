package system

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ProbeResult - нужная часть вывода ffprobe -show_format -show_streams.
type ProbeResult struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

type AudioInfo struct {
	Duration float64
	Codec    string
}

// DefaultCommandTimeout ограничивает ffprobe, если у ctx нет дедлайна.
const DefaultCommandTimeout = 30 * time.Second

// ProbeAudio читает длительность и кодек первой аудиодорожки файла.
// Процесс ffprobe живет не дольше дедлайна ctx (или DefaultCommandTimeout).
func ProbeAudio(ctx context.Context, path string) (AudioInfo, error) {
	timeout, err := commandTimeout(ctx)
	if err != nil {
		return AudioInfo{}, err
	}

	type result struct {
		out string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
		ch <- result{out, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return AudioInfo{}, ctx.Err()
	case r = <-ch:
	}
	if r.err != nil {
		return AudioInfo{}, fmt.Errorf("ffprobe %s: %w", path, r.err)
	}

	return parseProbe([]byte(r.out))
}

// commandTimeout возвращает остаток до дедлайна ctx.
func commandTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return DefaultCommandTimeout, nil
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0, context.DeadlineExceeded
	}
	return left, nil
}

func parseProbe(data []byte) (AudioInfo, error) {
	var res ProbeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return AudioInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, s := range res.Streams {
		if s.CodecType != "audio" {
			continue
		}
		raw := res.Format.Duration
		if raw == "" {
			raw = s.Duration
		}
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return AudioInfo{}, fmt.Errorf("parse duration %q: %w", raw, err)
		}
		return AudioInfo{Duration: d, Codec: s.CodecName}, nil
	}

	return AudioInfo{}, fmt.Errorf("no audio stream")
}

// ProbeDuration - ProbeAudio, сведенный к длительности.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	info, err := ProbeAudio(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
