// Package web fetches landing pages of papers and extracts their readable
// text. Triage falls back to it when an article has a DOI but no abstract.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const maxBodyBytes = 8 << 20

var ErrNotReadable = errors.New("page has no readable text")

const (
	cacheEntries = 512
	cacheTTL     = time.Hour
)

// TextLoader loads pages over HTTP and keeps the extracted text in a
// bounded in-memory cache keyed by URL. Concurrent loads of the same URL
// share one request.
type TextLoader struct {
	client *http.Client

	cache *expirable.LRU[string, string]
	group singleflight.Group
}

func NewTextLoader(client *http.Client) *TextLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TextLoader{
		client: client,
		cache:  expirable.NewLRU[string, string](cacheEntries, nil, cacheTTL),
	}
}

// DOIURL returns the resolver URL for a DOI, accepting bare DOIs and
// doi.org links.
func DOIURL(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:", "DOI:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	if doi == "" {
		return ""
	}
	return "https://doi.org/" + doi
}

// FetchText downloads rawURL and returns its main text. HTML is reduced
// with readability; plain text is returned as is. Other content types fail
// with ErrNotReadable.
func (l *TextLoader) FetchText(ctx context.Context, rawURL string) (string, error) {
	if cached, ok := l.cache.Get(rawURL); ok {
		return cached, nil
	}

	result, err, _ := l.group.Do(rawURL, func() (any, error) {
		text, err := l.fetch(ctx, rawURL)
		if err != nil {
			return "", err
		}

		l.cache.Add(rawURL, text)
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (l *TextLoader) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to fetch url: status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	contentType := resp.Header.Get("Content-Type")

	switch {
	case strings.Contains(contentType, "text/html"):
		// the final URL after redirects resolves relative links
		article, err := readability.FromReader(body, resp.Request.URL)
		if err != nil {
			return "", fmt.Errorf("failed to parse html: %w", err)
		}
		var builder strings.Builder
		if err := article.RenderText(&builder); err != nil {
			return "", fmt.Errorf("failed to render article text: %w", err)
		}
		text := strings.TrimSpace(builder.String())
		if text == "" {
			return "", ErrNotReadable
		}
		return text, nil
	case strings.HasPrefix(contentType, "text/plain"):
		data, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("%w: content type %q", ErrNotReadable, contentType)
	}
}
