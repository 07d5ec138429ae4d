package source

import (
	"context"
	"fmt"
	"time"

	"github.com/ansel1/merry/v2"
	"github.com/go-resty/resty/v2"
)

type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher создает загрузчик с общим таймаутом на запрос.
// Повторы не выполняются: неудачный кандидат просто пропускается.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetDisableWarn(true).
		SetHeader("User-Agent", "kenburns/1.0")

	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, location, err)
	}

	if !resp.IsSuccess() {
		err := fmt.Errorf("%w: %s: status %d", ErrFetchFailed, location, resp.StatusCode())
		return nil, merry.Wrap(err, merry.WithHTTPCode(resp.StatusCode()))
	}

	return resp.Body(), nil
}
