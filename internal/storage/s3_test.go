package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestNewPDFKey(t *testing.T) {
	t.Parallel()

	a, err := NewPDFKey("123")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	b, _ := NewPDFKey("123")

	if !strings.HasPrefix(a, "articles/123/") || !strings.HasSuffix(a, ".pdf") {
		t.Fatalf("got key %q", a)
	}
	if a == b {
		t.Fatalf("expected unique keys, got %q twice", a)
	}
}

func TestSplitPublicEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint   string
		wantBase   string
		wantPrefix string
		wantErr    bool
	}{
		{endpoint: "https://files.example.org", wantBase: "https://files.example.org"},
		{endpoint: "https://example.org/s3/", wantBase: "https://example.org", wantPrefix: "/s3"},
		{endpoint: "", wantErr: true},
		{endpoint: "files.example.org", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.endpoint, func(t *testing.T) {
			t.Parallel()

			base, prefix, err := splitPublicEndpoint(tc.endpoint)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if base != tc.wantBase || prefix != tc.wantPrefix {
				t.Fatalf("got (%q, %q), want (%q, %q)", base, prefix, tc.wantBase, tc.wantPrefix)
			}
		})
	}
}

func TestWithPathPrefix(t *testing.T) {
	t.Parallel()

	got, err := withPathPrefix("https://example.org/bucket/articles/1/a.pdf?X-Amz-Signature=abc", "/s3")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	want := "https://example.org/s3/bucket/articles/1/a.pdf?X-Amz-Signature=abc"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("key", "secret", ""),
	})
	return NewStore(client, "papers", srv.URL)
}

func TestGetFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/papers/articles/1/a.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("%PDF-1.7"))
	})

	data, err := store.GetFile(context.Background(), "articles/1/a.pdf")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if string(data) != "%PDF-1.7" {
		t.Fatalf("got %q, want %%PDF-1.7", data)
	}

	if _, err := store.GetFile(context.Background(), "articles/1/missing.pdf"); err == nil {
		t.Fatalf("expected error for a missing object")
	}
}
