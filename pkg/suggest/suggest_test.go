package suggest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
)

func papersLinkedTo(hypothesisID int64, n int, score int) []Paper {
	papers := make([]Paper, 0, n)
	for i := range n {
		papers = append(papers, Paper{
			PMID:           fmt.Sprintf("%d", 1000+i),
			RelevanceScore: score,
			Hypotheses:     []common.RelevanceEntry{{ID: hypothesisID, Score: 75, SupportType: "supports"}},
		})
	}
	return papers
}

func TestSuggest_HypothesisThreshold(t *testing.T) {
	t.Parallel()

	hyps := []Source{{ID: 1, Text: "Metformin slows tumour growth"}}

	got := Suggest(papersLinkedTo(1, 4, 60), hyps, nil, Options{MinPapers: 5})
	if len(got) != 0 {
		t.Fatalf("4 papers: expected no suggestion, got %+v", got)
	}

	got = Suggest(papersLinkedTo(1, 5, 60), hyps, nil, Options{MinPapers: 5})
	if len(got) != 1 {
		t.Fatalf("5 papers: expected exactly one suggestion, got %d", len(got))
	}
	if got[0].Type != TypeHypothesis || got[0].SourceID == nil || *got[0].SourceID != 1 {
		t.Fatalf("unexpected suggestion: %+v", got[0])
	}
	if len(got[0].PMIDs) != 5 {
		t.Fatalf("expected 5 pmids, got %v", got[0].PMIDs)
	}
}

func TestSuggest_DefaultMinPapers(t *testing.T) {
	t.Parallel()

	hyps := []Source{{ID: 3, Text: "short"}}
	if got := Suggest(papersLinkedTo(3, 4, 50), hyps, nil, Options{}); len(got) != 0 {
		t.Fatalf("expected default threshold of %d, got %+v", DefaultMinPapers, got)
	}
	if got := Suggest(papersLinkedTo(3, 5, 50), hyps, nil, Options{}); len(got) != 1 {
		t.Fatalf("expected one suggestion, got %+v", got)
	}
}

func TestSuggest_IgnoresWeakLinks(t *testing.T) {
	t.Parallel()

	papers := papersLinkedTo(2, 6, 50)
	for i := range papers {
		papers[i].Hypotheses[0].Score = LinkScore - 1
	}
	got := Suggest(papers, []Source{{ID: 2, Text: "x"}}, nil, Options{MinPapers: 5})
	if len(got) != 0 {
		t.Fatalf("expected no suggestion for weak links, got %+v", got)
	}
}

func TestSuggest_QuestionAndHighImpact(t *testing.T) {
	t.Parallel()

	var papers []Paper
	for i := range 6 {
		papers = append(papers, Paper{
			PMID:           fmt.Sprintf("p%d", i),
			RelevanceScore: 80 + i,
			Questions:      []common.RelevanceEntry{{ID: 9, Score: 90}},
		})
	}

	got := Suggest(papers, nil, []Source{{ID: 9, Text: "Which biomarkers predict response?"}}, Options{MinPapers: 5})
	if len(got) != 2 {
		t.Fatalf("expected question and high impact suggestions, got %+v", got)
	}
	if got[0].Type != TypeQuestion || got[1].Type != TypeHighImpact {
		t.Fatalf("unexpected order: %q then %q", got[0].Type, got[1].Type)
	}
	if got[1].SourceID != nil {
		t.Fatal("high impact suggestion should have no source id")
	}

	wantOrder := []string{"p5", "p4", "p3", "p2", "p1", "p0"}
	if !reflect.DeepEqual(got[1].PMIDs, wantOrder) {
		t.Fatalf("got %v, want %v", got[1].PMIDs, wantOrder)
	}
}

func TestSuggest_HighImpactNeedsEnoughPapers(t *testing.T) {
	t.Parallel()

	papers := []Paper{
		{PMID: "a", RelevanceScore: 95},
		{PMID: "b", RelevanceScore: 85},
		{PMID: "c", RelevanceScore: 79},
		{PMID: "d", RelevanceScore: 99},
		{PMID: "e", RelevanceScore: 80},
	}
	if got := Suggest(papers, nil, nil, Options{MinPapers: 5}); len(got) != 0 {
		t.Fatalf("only 4 papers >= 80, expected none, got %+v", got)
	}
}

func TestSuggest_NameTruncation(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 80)
	got := Suggest(papersLinkedTo(1, 5, 50), []Source{{ID: 1, Text: long}}, nil, Options{MinPapers: 5})
	if len(got) != 1 {
		t.Fatalf("expected one suggestion, got %d", len(got))
	}
	want := "Evidence: " + strings.Repeat("a", 50) + "..."
	if got[0].Name != want {
		t.Fatalf("got %q, want %q", got[0].Name, want)
	}

	got = Suggest(papersLinkedTo(1, 5, 50), []Source{{ID: 1, Text: "brief"}}, nil, Options{MinPapers: 5})
	if got[0].Name != "Evidence: brief" {
		t.Fatalf("short names should not get an ellipsis, got %q", got[0].Name)
	}
}

func TestSuggest_DeterministicOrdering(t *testing.T) {
	t.Parallel()

	var papers []Paper
	for i := range 5 {
		papers = append(papers, Paper{
			PMID:           fmt.Sprintf("x%d", i),
			RelevanceScore: 50,
			Hypotheses: []common.RelevanceEntry{
				{ID: 20, Score: 60},
				{ID: 10, Score: 60},
			},
		})
	}
	hyps := []Source{{ID: 20, Text: "second"}, {ID: 10, Text: "first"}}

	a := Suggest(papers, hyps, nil, Options{MinPapers: 5})
	b := Suggest(papers, hyps, nil, Options{MinPapers: 5})
	if !reflect.DeepEqual(a, b) {
		t.Fatal("suggestions are not deterministic")
	}
	if len(a) != 2 || *a[0].SourceID != 10 || *a[1].SourceID != 20 {
		t.Fatalf("expected hypotheses ordered by id, got %+v", a)
	}
	if !reflect.DeepEqual(a[0].PMIDs, []string{"x0", "x1", "x2", "x3", "x4"}) {
		t.Fatalf("ties should be broken by pmid, got %v", a[0].PMIDs)
	}
}

type fakeStore struct {
	triage    []pgdb.PaperTriage
	hyps      []pgdb.Hypothesis
	questions []pgdb.ResearchQuestion
	status    string
}

func (f *fakeStore) ListTriageByStatus(_ context.Context, arg pgdb.ListTriageByStatusParams) ([]pgdb.PaperTriage, error) {
	f.status = arg.TriageStatus
	return f.triage, nil
}

func (f *fakeStore) ListHypothesesByProject(context.Context, int64) ([]pgdb.Hypothesis, error) {
	return f.hyps, nil
}

func (f *fakeStore) ListQuestionsByProject(context.Context, int64) ([]pgdb.ResearchQuestion, error) {
	return f.questions, nil
}

func TestForProject_ReadsMustReadRows(t *testing.T) {
	t.Parallel()

	store := &fakeStore{hyps: []pgdb.Hypothesis{{ID: 1, Text: "h"}}}
	for i := range 5 {
		store.triage = append(store.triage, pgdb.PaperTriage{
			ArticlePmid:         fmt.Sprintf("%d", i),
			RelevanceScore:      70,
			TriageStatus:        "must_read",
			HypothesisRelevance: []byte(`[{"id":1,"score":72,"support_type":"supports"}]`),
		})
	}

	got, err := ForProject(context.Background(), store, 1, Options{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if store.status != "must_read" {
		t.Fatalf("expected must_read filter, got %q", store.status)
	}
	if len(got) != 1 || got[0].Type != TypeHypothesis {
		t.Fatalf("unexpected suggestions: %+v", got)
	}
}

func TestPaperFromTriage_InvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := PaperFromTriage(pgdb.PaperTriage{ArticlePmid: "1", HypothesisRelevance: []byte("{")})
	if err == nil {
		t.Fatal("expected error for invalid relevance json")
	}
}
