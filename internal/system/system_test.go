package system

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLatestAudio(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp3")
	fresh := filepath.Join(dir, "fresh.WAV")
	require.NoError(t, os.WriteFile(old, nil, 0o644))
	require.NoError(t, os.WriteFile(fresh, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "newest.txt"), nil, 0o644))

	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(fresh, now, now))

	got, err := FindLatestAudio(dir)
	require.NoError(t, err)
	assert.Equal(t, fresh, got)

	_, err = FindLatestAudio(t.TempDir())
	assert.Error(t, err)
}

func TestPickEncoder(t *testing.T) {
	assert.Equal(t, "h264_nvenc", pickEncoder(" V....D h264_nvenc  NVIDIA NVENC H.264 encoder"))
	assert.Equal(t, "h264_videotoolbox", pickEncoder("h264_nvenc\nh264_videotoolbox"))
	assert.Equal(t, "libx264", pickEncoder(" V....D libx264  H.264"))
}

func TestDefaultQuality(t *testing.T) {
	assert.Equal(t, 75, DefaultQuality("h264_videotoolbox"))
	assert.Equal(t, 28, DefaultQuality("h264_nvenc"))
	assert.Equal(t, 23, DefaultQuality("libx264"))
}

func TestParseProbe(t *testing.T) {
	out := `{
		"streams": [
			{"codec_type": "video", "codec_name": "mjpeg"},
			{"codec_type": "audio", "codec_name": "mp3", "duration": "9.900000"}
		],
		"format": {"duration": "10.000000", "format_name": "mp3"}
	}`

	info, err := parseProbe([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, 10.0, info.Duration)
	assert.Equal(t, "mp3", info.Codec)
}

func TestParseProbe_StreamDurationFallback(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio","codec_name":"aac","duration":"3.5"}],"format":{}}`))
	require.NoError(t, err)
	assert.Equal(t, 3.5, info.Duration)
}

func TestParseProbe_Errors(t *testing.T) {
	for name, out := range map[string]string{
		"not json":     "ffprobe: error",
		"no audio":     `{"streams":[{"codec_type":"video"}],"format":{"duration":"4"}}`,
		"bad duration": `{"streams":[{"codec_type":"audio"}],"format":{"duration":"N/A"}}`,
	} {
		_, err := parseProbe([]byte(out))
		assert.Error(t, err, name)
	}
}

func TestCommandTimeout(t *testing.T) {
	d, err := commandTimeout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultCommandTimeout, d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err = commandTimeout(ctx)
	require.NoError(t, err)
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, 5*time.Second)

	cancel()
	_, err = commandTimeout(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	expired, stop := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer stop()
	_, err = commandTimeout(expired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAudioInfo_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProbeAudio(ctx, filepath.Join(t.TempDir(), "voice.mp3"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImagePool(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 8, 4)

	img := p.Get(rect)
	require.NotNil(t, img)
	assert.Equal(t, rect, img.Rect)
	assert.Len(t, img.Pix, 8*4*4)
	p.Put(img)

	other := p.Get(image.Rect(0, 0, 2, 2))
	assert.Equal(t, image.Rect(0, 0, 2, 2), other.Rect)

	// чужой размер и nil игнорируются
	p.Put(image.NewRGBA(image.Rect(0, 0, 3, 3)))
	p.Put(nil)
}

func TestSuggestWorkers(t *testing.T) {
	const frame = 1920 * 1080 * 4 * 3

	assert.Equal(t, 8, SuggestWorkers(Resources{CPUs: 8, AvailableMemory: 16 << 30}, frame))
	assert.Equal(t, 2, SuggestWorkers(Resources{CPUs: 8, AvailableMemory: 4 * frame}, frame))
	assert.Equal(t, 1, SuggestWorkers(Resources{CPUs: 8, AvailableMemory: 1}, frame))
	assert.Equal(t, 4, SuggestWorkers(Resources{CPUs: 4}, frame))
	assert.Equal(t, 1, SuggestWorkers(Resources{}, 0))
}

func TestSnapshot(t *testing.T) {
	res, err := Snapshot()
	if err != nil {
		t.Skipf("gopsutil unavailable: %v", err)
	}
	assert.Greater(t, res.CPUs, 0)
	assert.Greater(t, res.TotalMemory, uint64(0))
}

func TestReport(t *testing.T) {
	r := Report{
		Build:        "test",
		Audio:        "voice.mp3",
		Segments:     3,
		FrameRate:    24,
		VideoSeconds: 10,
		Total:        2 * time.Second,
		Encode:       time.Second,
	}

	var buf bytes.Buffer
	r.Print(&buf)
	assert.Contains(t, buf.String(), "PERFORMANCE REPORT")
	assert.Contains(t, buf.String(), "Segments: 3")
	assert.Contains(t, buf.String(), "Speed: 120.0 fps")
	assert.InDelta(t, 120.0, r.FPS(24, 10), 1e-9)

	path := filepath.Join(t.TempDir(), "benchmark.log")
	require.NoError(t, r.AppendLog(path, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, r.AppendLog(path, time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[2026-01-02 03:04:05] Build: test | Audio: voice.mp3"))
}
