package unpaywall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPDFURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{
			name:   "best location",
			status: http.StatusOK,
			body:   `{"is_oa":true,"best_oa_location":{"url_for_pdf":"https://x/best.pdf"},"oa_locations":[{"url_for_pdf":"https://x/other.pdf"}]}`,
			want:   "https://x/best.pdf",
		},
		{
			name:   "falls back to other locations",
			status: http.StatusOK,
			body:   `{"is_oa":true,"best_oa_location":{"url":"https://x/landing"},"oa_locations":[{"url":"https://x/l"},{"url_for_pdf":"https://x/other.pdf"}]}`,
			want:   "https://x/other.pdf",
		},
		{
			name:    "closed access",
			status:  http.StatusOK,
			body:    `{"is_oa":false}`,
			wantErr: ErrNoOpenAccess,
		},
		{
			name:    "unknown doi",
			status:  http.StatusNotFound,
			wantErr: ErrNoOpenAccess,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("email") != "me@example.org" {
					t.Errorf("missing email param: %s", r.URL.RawQuery)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			got, err := NewClient(srv.URL, "me@example.org", 0).PDFURL(context.Background(), "10.1/abc")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("got %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDownload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.pdf":
			w.Write([]byte("%PDF-1.7 body"))
		case "/page.html":
			w.Write([]byte("<html></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)

	data, err := c.Download(context.Background(), srv.URL+"/ok.pdf")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if string(data) != "%PDF-1.7 body" {
		t.Fatalf("got %q", data)
	}

	if _, err := c.Download(context.Background(), srv.URL+"/page.html"); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("got %v, want ErrNotPDF", err)
	}
	if _, err := c.Download(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatalf("expected error for missing pdf")
	}
}
