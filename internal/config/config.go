package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/kenburns/internal/renderer"
)

// EnvPrefix - префикс переменных окружения (KENBURNS_WIDTH, KENBURNS_S3_REGION, ...).
const EnvPrefix = "KENBURNS_"

var ErrInvalidConfig = errors.New("invalid config")

// ZoomModes перечисляет поддерживаемые режимы движения камеры.
var ZoomModes = []string{
	"center", "top-left", "top-right", "bottom-left", "bottom-right",
	"out-center", "random", "out-random", "pan", "smart", "custom",
}

type Config struct {
	AudioPath     string   `yaml:"audio" env:"AUDIO, overwrite"`
	Images        []string `yaml:"images" env:"IMAGES, overwrite"`
	FallbackImage string   `yaml:"fallback_image" env:"FALLBACK_IMAGE, overwrite"`
	OutputVideo   string   `yaml:"output" env:"OUTPUT, overwrite" validate:"required"`
	ManifestPath  string   `yaml:"manifest" env:"MANIFEST, overwrite"`
	MotionScript  string   `yaml:"motion_script" env:"MOTION_SCRIPT, overwrite"`
	TempDir       string   `yaml:"temp_dir" env:"TEMP_DIR, overwrite"`

	Width           int     `yaml:"width" env:"WIDTH, overwrite" validate:"gt=0,even"`
	Height          int     `yaml:"height" env:"HEIGHT, overwrite" validate:"gt=0,even"`
	FPS             int     `yaml:"fps" env:"FPS, overwrite" validate:"gt=0,lte=120"`
	SegmentDuration float64 `yaml:"segment_duration" env:"SEGMENT_DURATION, overwrite" validate:"gt=0"`
	FadeDuration    float64 `yaml:"fade" env:"FADE, overwrite" validate:"gte=0"`
	TransitionType  string  `yaml:"transition" env:"TRANSITION, overwrite" validate:"required"`

	ZoomMode  string  `yaml:"zoom_mode" env:"ZOOM_MODE, overwrite" validate:"zoommode"`
	ZoomStart float64 `yaml:"zoom_start" env:"ZOOM_START, overwrite" validate:"gt=0"`
	ZoomEnd   float64 `yaml:"zoom_end" env:"ZOOM_END, overwrite" validate:"gt=0"`
	Seed      int64   `yaml:"seed" env:"SEED, overwrite"`
	Resampler string  `yaml:"resampler" env:"RESAMPLER, overwrite" validate:"oneof=catmullrom bilinear approx-bilinear nearest"`
	DPI       int     `yaml:"dpi" env:"DPI, overwrite" validate:"gt=0,lte=1200"`
	QRCodeURL string  `yaml:"qr_url" env:"QR_URL, overwrite" validate:"omitempty,url"`
	// PanStart и PanEnd - якоря режима custom: center, left, top-right, ...
	PanStart string `yaml:"pan_start" env:"PAN_START, overwrite" validate:"omitempty,anchor"`
	PanEnd   string `yaml:"pan_end" env:"PAN_END, overwrite" validate:"omitempty,anchor"`

	Workers       int           `yaml:"workers" env:"WORKERS, overwrite" validate:"gte=0"`
	EncodeWorkers int           `yaml:"encode_workers" env:"ENCODE_WORKERS, overwrite" validate:"gte=0"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT, overwrite" validate:"gt=0"`

	VideoEncoder string `yaml:"video_encoder" env:"VIDEO_ENCODER, overwrite"`
	Quality      int    `yaml:"quality" env:"QUALITY, overwrite" validate:"gte=0"`
	AudioBitrate string `yaml:"audio_bitrate" env:"AUDIO_BITRATE, overwrite"`

	S3 S3Config `yaml:"s3" env:", prefix=S3_"`

	LogFormat string `yaml:"log_format" env:"LOG_FORMAT, overwrite" validate:"oneof=text json"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL, overwrite"`

	ShowStats    bool   `yaml:"stats" env:"STATS, overwrite"`
	BuildVersion string `yaml:"-"`
}

// S3Config описывает доступ к кандидатам вида s3://bucket/key.
// Пустые ключи означают стандартную цепочку учетных данных AWS.
type S3Config struct {
	Region          string `yaml:"region" env:"REGION, overwrite"`
	Endpoint        string `yaml:"endpoint" env:"ENDPOINT, overwrite"`
	AccessKeyID     string `yaml:"access_key_id" env:"ACCESS_KEY_ID, overwrite"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY, overwrite"`
}

func Default() *Config {
	return &Config{
		Width:           1920,
		Height:          1080,
		FPS:             24,
		SegmentDuration: 4.0,
		FadeDuration:    1.0,
		TransitionType:  "fade",
		ZoomMode:        "center",
		ZoomStart:       1.0,
		ZoomEnd:         1.2,
		Resampler:       "catmullrom",
		DPI:             150,
		FetchTimeout:    10 * time.Second,
		AudioBitrate:    "192k",
		LogFormat:       "text",
		LogLevel:        "info",
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML-файл задания
// (если path не пуст), затем переменные окружения KENBURNS_*.
// Флаги командной строки накладываются вызывающей стороной.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, envconfig.OsLookuper()),
	}); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("even", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%2 == 0
	})
	_ = v.RegisterValidation("zoommode", func(fl validator.FieldLevel) bool {
		mode := fl.Field().String()
		for _, m := range ZoomModes {
			if m == mode {
				return true
			}
		}
		return false
	})

	_ = v.RegisterValidation("anchor", func(fl validator.FieldLevel) bool {
		_, err := renderer.ParseAnchor(fl.Field().String())
		return err == nil
	})

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// TransitionsEnabled сообщает, нужны ли переходы xfade между сегментами.
func (c *Config) TransitionsEnabled() bool {
	return c.FadeDuration > 0 && c.TransitionType != "" && c.TransitionType != "none"
}
