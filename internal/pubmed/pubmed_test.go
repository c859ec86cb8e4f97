package pubmed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const efetchFixture = `<?xml version="1.0" ?>
<PubmedArticleSet>
 <PubmedArticle>
  <MedlineCitation>
   <PMID Version="1">31234567</PMID>
   <Article>
    <Journal>
     <JournalIssue><PubDate><MedlineDate>2019 Jan-Feb</MedlineDate></PubDate></JournalIssue>
     <Title>Aging Cell</Title>
    </Journal>
    <ArticleTitle>Metformin and <i>C. elegans</i> lifespan</ArticleTitle>
    <Abstract>
     <AbstractText Label="BACKGROUND">Ageing is complex &amp; costly.</AbstractText>
     <AbstractText Label="RESULTS">Lifespan increased.</AbstractText>
    </Abstract>
    <ELocationID EIdType="doi">10.1111/acel.0000</ELocationID>
   </Article>
  </MedlineCitation>
  <PubmedData>
   <ArticleIdList>
    <ArticleId IdType="pubmed">31234567</ArticleId>
    <ArticleId IdType="doi">10.1111/acel.12345</ArticleId>
   </ArticleIdList>
  </PubmedData>
 </PubmedArticle>
</PubmedArticleSet>`

func TestFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/efetch.fcgi" {
			t.Errorf("got path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "31234567" {
			t.Errorf("got id %q", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "k" {
			t.Errorf("got api_key %q", got)
		}
		w.Write([]byte(efetchFixture))
	}))
	defer srv.Close()

	c := NewClient(NewClientParams{BaseURL: srv.URL, APIKey: "k"})
	got, err := c.Fetch(context.Background(), "31234567")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	want := Article{
		PMID:     "31234567",
		Title:    "Metformin and C. elegans lifespan",
		Abstract: "BACKGROUND: Ageing is complex & costly.\n\nRESULTS: Lifespan increased.",
		Journal:  "Aging Cell",
		PubYear:  2019,
		DOI:      "10.1111/acel.12345",
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestFetch_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<PubmedArticleSet></PubmedArticleSet>`))
	}))
	defer srv.Close()

	_, err := NewClient(NewClientParams{BaseURL: srv.URL}).Fetch(context.Background(), "1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(efetchFixture))
	}))
	defer srv.Close()

	if _, err := NewClient(NewClientParams{BaseURL: srv.URL}).Fetch(context.Background(), "31234567"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("got %d calls, want 2", calls.Load())
	}
}

func TestFetch_BadRequestIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := NewClient(NewClientParams{BaseURL: srv.URL}).Fetch(context.Background(), "31234567"); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("got %d calls, want 1", calls.Load())
	}
}

func TestFetch_InvalidPMID(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(NewClientParams{BaseURL: "http://127.0.0.1:1"}).Fetch(context.Background(), "abc"); err == nil {
		t.Fatalf("expected error for invalid pmid")
	}
}
