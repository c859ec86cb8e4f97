package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const landingPage = `<html><head><title>Trial</title></head><body>
<nav>Journal menu</nav>
<article><h1>Metformin and ageing</h1>
<p>We randomised 400 participants to metformin or placebo and followed them for two years.
Metformin reduced the frailty index compared with placebo in every age group we studied.</p>
<p>Participants were recruited from twelve outpatient clinics and assessed every six months with a
standardised battery of physical and cognitive tests. Adherence to the study drug was above ninety percent
in both arms, and adverse events were rare and mostly gastrointestinal.</p>
<p>These results support a role for metformin in slowing biological ageing in humans.</p>
</article></body></html>`

func TestFetchText_HTMLUsesReadability(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(landingPage))
	}))
	defer srv.Close()

	l := NewTextLoader(srv.Client())
	got, err := l.FetchText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !strings.Contains(got, "frailty index") {
		t.Fatalf("article text missing from %q", got)
	}
}

func TestFetchText_CachesByURL(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("  abstract text  "))
	}))
	defer srv.Close()

	l := NewTextLoader(srv.Client())
	for range 3 {
		got, err := l.FetchText(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if got != "abstract text" {
			t.Fatalf("got %q, want %q", got, "abstract text")
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("got %d requests, want 1", hits.Load())
	}
}

func TestFetchText_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		contentType string
		notReadable bool
	}{
		{name: "server error", status: http.StatusInternalServerError, contentType: "text/html"},
		{name: "pdf body", status: http.StatusOK, contentType: "application/pdf", notReadable: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(tc.status)
				w.Write([]byte("%PDF-1.7"))
			}))
			defer srv.Close()

			_, err := NewTextLoader(srv.Client()).FetchText(context.Background(), srv.URL)
			if err == nil {
				t.Fatalf("expected error")
			}
			if errors.Is(err, ErrNotReadable) != tc.notReadable {
				t.Fatalf("got %v, want ErrNotReadable=%v", err, tc.notReadable)
			}
		})
	}
}

func TestDOIURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"10.1000/xyz":                 "https://doi.org/10.1000/xyz",
		" doi:10.1000/xyz ":           "https://doi.org/10.1000/xyz",
		"https://doi.org/10.1000/xyz": "https://doi.org/10.1000/xyz",
		"":                            "",
	}
	for in, want := range tests {
		if got := DOIURL(in); got != want {
			t.Fatalf("DOIURL(%q) = %q, want %q", in, got, want)
		}
	}
}
