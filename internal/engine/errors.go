package engine

import (
	"github.com/ivlev/kenburns/internal/frame"
	"github.com/ivlev/kenburns/internal/source"
	"github.com/ivlev/kenburns/internal/timeline"
	"github.com/ivlev/kenburns/internal/video"
)

// Ошибки, которые возвращает VideoProject.Run. Проверяются через errors.Is.
// ErrFetchFailed и ErrUndecodable относятся к отдельным кандидатам: они
// журналируются и пропускаются, наружу выходят только через ErrNoValidSegments.
var (
	ErrFetchFailed     = source.ErrFetchFailed
	ErrUndecodable     = frame.ErrUndecodable
	ErrNoValidSegments = timeline.ErrNoValidSegments
	ErrInvalidTimeline = timeline.ErrInvalidTimeline
	ErrAudioLoadFailed = video.ErrAudioLoadFailed
	ErrExportFailed    = video.ErrExportFailed
)
