package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ivlev/kenburns/internal/config"
	"github.com/ivlev/kenburns/internal/engine"
	"github.com/ivlev/kenburns/internal/source"
	"github.com/ivlev/kenburns/internal/system"
)

var version = "dev"

func main() {
	// .env необязателен
	_ = godotenv.Load()

	// Создаем нужные директории, если их нет
	for _, d := range []string{"input/audio", "output"} {
		os.MkdirAll(d, 0755)
	}

	def := config.Default()

	configPtr := flag.String("config", "", "Путь к YAML-конфигурации")
	audioPtr := flag.String("audio", "", "Путь к озвучке (по умолчанию: самый свежий файл в input/audio/)")
	imagesPtr := flag.String("images", "", "Список кандидатов через запятую: пути, http(s):// или s3:// адреса")
	imagesDirPtr := flag.String("images-dir", "", "Папка с изображениями-кандидатами (по алфавиту)")
	fallbackPtr := flag.String("fallback", "", "Изображение на случай пустого списка кандидатов")
	outputPtr := flag.String("output", "", "Путь к видео (если пусто, генерируется автоматически в output/)")
	manifestPtr := flag.String("manifest", "", "Записать манифест таймлайна (YAML)")
	scriptPtr := flag.String("motion-script", "", "Воспроизвести движения камеры из манифеста")
	widthPtr := flag.Int("width", def.Width, "Ширина")
	heightPtr := flag.Int("height", def.Height, "Высота")
	presetPtr := flag.String("preset", "", "Пресет формата: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	fpsPtr := flag.Int("fps", def.FPS, "FPS")
	segmentPtr := flag.Float64("segment", def.SegmentDuration, "Длительность сегмента (сек)")
	fadePtr := flag.Float64("fade", def.FadeDuration, "Длительность перехода (сек)")
	transitionPtr := flag.String("transition", def.TransitionType, "Тип перехода xfade: fade, wipeleft, slideup, pixelize, circlecrop, dissolve, none")
	zoomPtr := flag.String("zoom-mode", def.ZoomMode, "Движение: "+strings.Join(config.ZoomModes, ", "))
	zoomStartPtr := flag.Float64("zoom-start", def.ZoomStart, "Начальный зум")
	zoomEndPtr := flag.Float64("zoom-end", def.ZoomEnd, "Конечный зум")
	panStartPtr := flag.String("pan-start", "", "Начальный якорь режима custom: center, left, top-right, ...")
	panEndPtr := flag.String("pan-end", "", "Конечный якорь режима custom")
	seedPtr := flag.Int64("seed", def.Seed, "Зерно для режимов random")
	resamplerPtr := flag.String("resampler", def.Resampler, "Интерполяция: catmullrom, bilinear, approx-bilinear, nearest")
	dpiPtr := flag.Int("dpi", def.DPI, "DPI для PDF-кандидатов")
	qrPtr := flag.String("qr", "", "URL для QR-кода в углу кадра")
	workersPtr := flag.Int("workers", 0, "Потоки загрузки (0 - авто)")
	encodeWorkersPtr := flag.Int("encode-workers", 0, "Одновременно кодируемые сегменты (0 - авто)")
	encoderPtr := flag.String("encoder", "", "Кодек видео (пусто - лучший доступный H.264)")
	qualityPtr := flag.Int("quality", 0, "Качество видео (0 - авто, x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	statsPtr := flag.Bool("stats", false, "Показать статистику и дописать benchmark.log")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *configPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}
	cfg.BuildVersion = version

	// Флаги переопределяют файл и окружение, только если заданы явно
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "audio":
			cfg.AudioPath = *audioPtr
		case "images":
			cfg.Images = splitList(*imagesPtr)
		case "fallback":
			cfg.FallbackImage = *fallbackPtr
		case "output":
			cfg.OutputVideo = *outputPtr
		case "manifest":
			cfg.ManifestPath = *manifestPtr
		case "motion-script":
			cfg.MotionScript = *scriptPtr
		case "width":
			cfg.Width = *widthPtr
		case "height":
			cfg.Height = *heightPtr
		case "fps":
			cfg.FPS = *fpsPtr
		case "segment":
			cfg.SegmentDuration = *segmentPtr
		case "fade":
			cfg.FadeDuration = *fadePtr
		case "transition":
			cfg.TransitionType = *transitionPtr
		case "zoom-mode":
			cfg.ZoomMode = *zoomPtr
		case "zoom-start":
			cfg.ZoomStart = *zoomStartPtr
		case "zoom-end":
			cfg.ZoomEnd = *zoomEndPtr
		case "pan-start":
			cfg.PanStart = *panStartPtr
		case "pan-end":
			cfg.PanEnd = *panEndPtr
		case "seed":
			cfg.Seed = *seedPtr
		case "resampler":
			cfg.Resampler = *resamplerPtr
		case "dpi":
			cfg.DPI = *dpiPtr
		case "qr":
			cfg.QRCodeURL = *qrPtr
		case "workers":
			cfg.Workers = *workersPtr
		case "encode-workers":
			cfg.EncodeWorkers = *encodeWorkersPtr
		case "encoder":
			cfg.VideoEncoder = *encoderPtr
		case "quality":
			cfg.Quality = *qualityPtr
		case "stats":
			cfg.ShowStats = *statsPtr
		}
	})

	switch *presetPtr {
	case "16:9":
		cfg.Width, cfg.Height = 1920, 1080
	case "9:16":
		cfg.Width, cfg.Height = 1080, 1920
	case "4:5":
		cfg.Width, cfg.Height = 1080, 1350
	}

	if *imagesDirPtr != "" {
		imgs, err := source.ListImages(*imagesDirPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка чтения папки изображений: %v", err)
		}
		cfg.Images = append(cfg.Images, imgs...)
	}

	if cfg.AudioPath == "" {
		latest, err := system.FindLatestAudio("input/audio")
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите озвучку в input/audio/", err)
		}
		cfg.AudioPath = latest
		fmt.Printf("[*] Выбрано аудио: %s\n", cfg.AudioPath)
	}

	if cfg.OutputVideo == "" {
		cfg.OutputVideo = defaultOutput(cfg.AudioPath, time.Now())
	}

	if cfg.VideoEncoder == "" || cfg.VideoEncoder == "auto" {
		cfg.VideoEncoder = system.BestH264Encoder(ctx)
		if cfg.VideoEncoder != "libx264" {
			fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", cfg.VideoEncoder)
		}
	}
	if cfg.Quality == 0 {
		cfg.Quality = system.DefaultQuality(cfg.VideoEncoder)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}

	logger := cfg.NewLogger()

	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits(logger)

	project, err := engine.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации: %v", err)
	}

	asset, err := project.Run(ctx)
	if err != nil {
		log.Fatalf("[-] %s: %v", describe(err), err)
	}

	fmt.Printf("[+++] Успех! Результат: %s (%.2fs, сегментов: %d)\n", asset.Path, asset.Duration, asset.Segments)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultOutput(audioPath string, now time.Time) string {
	baseName := filepath.Base(audioPath)
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	timestamp := now.Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s.mp4", cleanName, timestamp))
}

func describe(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "Прервано пользователем"
	case errors.Is(err, engine.ErrAudioLoadFailed):
		return "Не удалось загрузить озвучку"
	case errors.Is(err, engine.ErrNoValidSegments):
		return "Нет пригодных изображений"
	case errors.Is(err, engine.ErrExportFailed):
		return "Ошибка экспорта видео"
	case errors.Is(err, config.ErrInvalidConfig):
		return "Ошибка конфигурации"
	default:
		return "Ошибка проекта"
	}
}
