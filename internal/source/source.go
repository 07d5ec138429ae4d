// Package source загружает байты кандидатов-изображений по их расположению:
// http(s)-адресу, s3://bucket/key или локальному пути.
package source

import (
	"context"
	"errors"
	"strings"
)

var ErrFetchFailed = errors.New("fetch failed")

// Candidate - расположение изображения и его позиция во входном списке.
type Candidate struct {
	Index    int    `yaml:"index"`
	Location string `yaml:"location"`
}

type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Candidates превращает список расположений в кандидатов, отбрасывая пустые строки.
// Индекс кандидата - позиция в исходном списке.
func Candidates(locations []string) []Candidate {
	var out []Candidate
	for i, loc := range locations {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		out = append(out, Candidate{Index: i, Location: loc})
	}
	return out
}

