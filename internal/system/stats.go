package system

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Resources - снимок ресурсов машины.
type Resources struct {
	CPUs            int
	TotalMemory     uint64
	AvailableMemory uint64
}

func Snapshot() (Resources, error) {
	res := Resources{CPUs: runtime.NumCPU()}

	if n, err := cpu.Counts(true); err == nil && n > 0 {
		res.CPUs = n
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return res, fmt.Errorf("virtual memory: %w", err)
	}
	res.TotalMemory = vm.Total
	res.AvailableMemory = vm.Available

	return res, nil
}

// SuggestWorkers подбирает число воркеров: не больше числа ядер и не больше,
// чем помещается в половину свободной памяти, если каждому нужно
// perWorker байт. Всегда не меньше 1.
func SuggestWorkers(res Resources, perWorker uint64) int {
	n := max(1, res.CPUs)
	if perWorker > 0 && res.AvailableMemory > 0 {
		byMem := int(res.AvailableMemory / 2 / perWorker)
		n = min(n, byMem)
	}
	return max(1, n)
}

// Report - итоги производительности одного запуска.
type Report struct {
	Build     string
	Audio     string
	Segments  int
	FrameRate int
	// VideoSeconds - длительность итогового видео.
	VideoSeconds float64
	Total        time.Duration
	Resolve      time.Duration
	Encode       time.Duration
	Compose      time.Duration
	Resources    Resources
}

func (r Report) FPS(fps int, videoSeconds float64) float64 {
	if r.Total <= 0 {
		return 0
	}
	return videoSeconds * float64(fps) / r.Total.Seconds()
}

func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w,
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Segments: %d\n"+
			"Total Time: %.2fs\n"+
			"Resolve (fetch+decode): %.2fs\n"+
			"Encoding (GPU/CPU): %.2fs\n"+
			"Composition: %.2fs\n"+
			"Speed: %.1f fps\n"+
			"CPUs: %d | Free RAM: %d MiB\n"+
			"----------------------------\n",
		r.Build, r.Segments, r.Total.Seconds(), r.Resolve.Seconds(), r.Encode.Seconds(),
		r.Compose.Seconds(), r.FPS(r.FrameRate, r.VideoSeconds), r.Resources.CPUs, r.Resources.AvailableMemory>>20,
	)
}

// AppendLog дописывает строку отчета в файл журнала (benchmark.log).
func (r Report) AppendLog(path string, now time.Time) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "[%s] Build: %s | Audio: %s | Segments: %d | Total: %.2fs | Resolve: %.2fs | Encode: %.2fs | Compose: %.2fs\n",
		now.Format("2006-01-02 15:04:05"), r.Build, r.Audio, r.Segments,
		r.Total.Seconds(), r.Resolve.Seconds(), r.Encode.Seconds(), r.Compose.Seconds(),
	)
	return err
}
