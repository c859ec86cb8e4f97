package pdf

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type fakeObjects struct {
	files map[string][]byte
	reads atomic.Int32
}

func (f *fakeObjects) GetFile(_ context.Context, key string) ([]byte, error) {
	f.reads.Add(1)
	data, ok := f.files[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func newTestLoader(objects *fakeObjects, extract func(context.Context, []byte) (string, error)) *TextLoader {
	l := NewTextLoader(objects)
	l.extract = extract
	return l
}

func TestTextLoader_CachesByKey(t *testing.T) {
	t.Parallel()

	objects := &fakeObjects{files: map[string][]byte{"articles/1/a.pdf": []byte("%PDF")}}
	var extracted atomic.Int32
	l := newTestLoader(objects, func(_ context.Context, input []byte) (string, error) {
		extracted.Add(1)
		return "full text of " + string(input), nil
	})

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			got, err := l.FetchText(context.Background(), "articles/1/a.pdf")
			if err != nil || got != "full text of %PDF" {
				t.Errorf("got (%q, %v)", got, err)
			}
		})
	}
	wg.Wait()

	if _, err := l.FetchText(context.Background(), "articles/1/a.pdf"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n := objects.reads.Load(); n != 1 {
		t.Fatalf("got %d reads, want 1", n)
	}
	if n := extracted.Load(); n != 1 {
		t.Fatalf("got %d extractions, want 1", n)
	}
}

func TestTextLoader_CacheIsBounded(t *testing.T) {
	t.Parallel()

	objects := &fakeObjects{files: map[string][]byte{"a": []byte("1"), "b": []byte("2")}}
	l := newTestLoader(objects, func(_ context.Context, input []byte) (string, error) {
		return string(input), nil
	})
	l.cache = expirable.NewLRU[string, string](1, nil, time.Minute)

	for _, key := range []string{"a", "b", "a"} {
		if _, err := l.FetchText(context.Background(), key); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	if n := objects.reads.Load(); n != 3 {
		t.Fatalf("got %d reads, want 3", n)
	}
}

func TestTextLoader_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	objects := &fakeObjects{files: map[string][]byte{"k": []byte("x")}}
	fail := true
	l := newTestLoader(objects, func(context.Context, []byte) (string, error) {
		if fail {
			return "", ErrNoText
		}
		return "text", nil
	})

	if _, err := l.FetchText(context.Background(), "k"); !errors.Is(err, ErrNoText) {
		t.Fatalf("got %v, want ErrNoText", err)
	}
	fail = false
	got, err := l.FetchText(context.Background(), "k")
	if err != nil || got != "text" {
		t.Fatalf("got (%q, %v), want (text, nil)", got, err)
	}
}

func TestTextLoader_MissingObject(t *testing.T) {
	t.Parallel()

	l := newTestLoader(&fakeObjects{}, func(context.Context, []byte) (string, error) {
		t.Fatal("extract called without data")
		return "", nil
	})
	if _, err := l.FetchText(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestExtract_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := extractWith(context.Background(), "pdftotext-not-installed", []byte("%PDF"))
	if !errors.Is(err, ErrNoExtractor) {
		t.Fatalf("got %v, want ErrNoExtractor", err)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trims", in: "  Title\n", want: "Title"},
		{name: "collapses_blank_runs", in: "Intro\n\n\n\n\nMethods", want: "Intro\n\nMethods"},
		{name: "page_breaks", in: "Page one\f\f\fPage two", want: "Page one\n\nPage two"},
		{name: "empty", in: "\n\n", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := normalize(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
