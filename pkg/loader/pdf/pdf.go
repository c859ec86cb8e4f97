// Package pdf turns stored article PDFs into text. Triage reads it when an
// article has no abstract but a PDF was fetched for it.
package pdf

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	cacheEntries = 128
	cacheTTL     = time.Hour
)

// ObjectReader reads a stored file by key.
type ObjectReader interface {
	GetFile(ctx context.Context, key string) ([]byte, error)
}

// TextLoader extracts text from stored PDFs and keeps a bounded number of
// results in memory by object key. Concurrent loads of the same key share
// one extraction.
type TextLoader struct {
	objects ObjectReader
	extract func(ctx context.Context, input []byte) (string, error)

	cache *expirable.LRU[string, string]
	group singleflight.Group
}

func NewTextLoader(objects ObjectReader) *TextLoader {
	return &TextLoader{
		objects: objects,
		extract: Extract,
		cache:   expirable.NewLRU[string, string](cacheEntries, nil, cacheTTL),
	}
}

// FetchText returns the text of the PDF stored under key.
func (l *TextLoader) FetchText(ctx context.Context, key string) (string, error) {
	if cached, ok := l.cache.Get(key); ok {
		return cached, nil
	}

	result, err, _ := l.group.Do(key, func() (any, error) {
		data, err := l.objects.GetFile(ctx, key)
		if err != nil {
			return "", err
		}

		text, err := l.extract(ctx, data)
		if err != nil {
			return "", fmt.Errorf("failed to extract %s: %w", key, err)
		}

		l.cache.Add(key, text)
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
