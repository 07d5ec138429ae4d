package source

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Router выбирает загрузчик по схеме расположения и ограничивает
// каждую загрузку таймаутом.
type Router struct {
	HTTP    Fetcher
	S3      Fetcher
	File    Fetcher
	Timeout time.Duration
}

func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	f, err := r.route(location)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, location)
}

func (r *Router) route(location string) (Fetcher, error) {
	var f Fetcher
	var scheme string

	switch lower := strings.ToLower(location); {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		f, scheme = r.HTTP, "http"
	case strings.HasPrefix(lower, "s3://"):
		f, scheme = r.S3, "s3"
	default:
		f, scheme = r.File, "file"
	}

	if f == nil {
		return nil, fmt.Errorf("%w: no %s fetcher configured for %s", ErrFetchFailed, scheme, location)
	}
	return f, nil
}
