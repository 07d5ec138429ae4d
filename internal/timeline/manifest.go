package timeline

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/kenburns/internal/effects"
	"github.com/ivlev/kenburns/internal/source"
)

const ManifestVersion = "1"

// Manifest - описание построенного таймлайна для отладки и повторного
// воспроизведения движений камеры.
type Manifest struct {
	Version         string            `yaml:"version"`
	Audio           string            `yaml:"audio"`
	AudioDuration   float64           `yaml:"audio_duration"`
	SegmentDuration float64           `yaml:"segment_duration"`
	FadeDuration    float64           `yaml:"fade"`
	Segments        []ManifestSegment `yaml:"segments"`
}

type ManifestSegment struct {
	Index    int              `yaml:"index"`
	Start    float64          `yaml:"start"`
	Duration float64          `yaml:"duration"`
	Source   source.Candidate `yaml:"source"`
	Motion   effects.Motion   `yaml:"motion"`
}

func NewManifest(tl *Timeline, audio string, audioDuration, fade float64) *Manifest {
	m := &Manifest{
		Version:         ManifestVersion,
		Audio:           audio,
		AudioDuration:   audioDuration,
		SegmentDuration: tl.SegmentDuration,
		FadeDuration:    fade,
		Segments:        make([]ManifestSegment, len(tl.Segments)),
	}
	for i, s := range tl.Segments {
		m.Segments[i] = ManifestSegment{
			Index:    s.Index,
			Start:    s.StartTime,
			Duration: s.Duration,
			Source:   s.Source,
			Motion:   s.Motion,
		}
	}
	return m
}

// Motions возвращает движения камеры по индексу сегмента.
func (m *Manifest) Motions() []effects.Motion {
	out := make([]effects.Motion, len(m.Segments))
	for i, s := range m.Segments {
		out[i] = s.Motion
	}
	return out
}

// WriteManifest writes a manifest to a YAML file
func WriteManifest(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// ReadManifest reads a manifest from a YAML file
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}
