package evidence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"

	"github.com/jackc/pgx/v5"
)

type fakeStore struct {
	mu    sync.Mutex
	links map[string]pgdb.HypothesisEvidence
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{links: make(map[string]pgdb.HypothesisEvidence)}
}

func (f *fakeStore) CreateAIEvidenceLink(_ context.Context, arg pgdb.CreateAIEvidenceLinkParams) (pgdb.HypothesisEvidence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return pgdb.HypothesisEvidence{}, f.err
	}
	key := fmt.Sprintf("%d/%s", arg.HypothesisID, arg.ArticlePmid)
	if _, ok := f.links[key]; ok {
		return pgdb.HypothesisEvidence{}, pgx.ErrNoRows
	}
	link := pgdb.HypothesisEvidence{
		ID:             int64(len(f.links) + 1),
		HypothesisID:   arg.HypothesisID,
		ArticlePmid:    arg.ArticlePmid,
		EvidenceType:   arg.EvidenceType,
		Strength:       arg.Strength,
		KeyFinding:     arg.KeyFinding,
		RelevanceScore: arg.RelevanceScore,
	}
	f.links[key] = link
	return link, nil
}

func TestDecide_ScoreGate(t *testing.T) {
	t.Parallel()

	for score := -5; score < MinLinkScore; score++ {
		if _, ok := Decide(score, "supports"); ok {
			t.Fatalf("score %d should not produce a link", score)
		}
	}
	if _, ok := Decide(MinLinkScore, "supports"); !ok {
		t.Fatalf("score %d should produce a link", MinLinkScore)
	}
}

func TestStrengthFor_Buckets(t *testing.T) {
	t.Parallel()

	for score := 40; score <= 100; score++ {
		want := common.StrengthWeak
		switch {
		case score >= 90:
			want = common.StrengthStrong
		case score >= 70:
			want = common.StrengthModerate
		}
		d, ok := Decide(score, "tests")
		if !ok {
			t.Fatalf("score %d unexpectedly gated", score)
		}
		if d.Strength != want {
			t.Fatalf("score %d: got %q, want %q", score, d.Strength, want)
		}
	}
}

func TestStrengthFor_ClampsAbove100(t *testing.T) {
	t.Parallel()

	d, ok := Decide(140, "supports")
	if !ok {
		t.Fatal("expected link")
	}
	if d.Score != 100 || d.Strength != common.StrengthStrong {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestEvidenceTypeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		supportType string
		want        common.EvidenceType
	}{
		{"supports", common.EvidenceSupports},
		{"tests", common.EvidenceSupports},
		{" Supports ", common.EvidenceSupports},
		{"contradicts", common.EvidenceContradicts},
		{"CONTRADICTS", common.EvidenceContradicts},
		{"provides_context", common.EvidenceNeutral},
		{"not_relevant", common.EvidenceNeutral},
		{"", common.EvidenceNeutral},
		{"refutes-ish", common.EvidenceNeutral},
	}

	for _, tc := range tests {
		t.Run(tc.supportType, func(t *testing.T) {
			if got := EvidenceTypeFor(tc.supportType); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLinkArticle_SkipsLowScores(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	results, err := LinkArticle(context.Background(), store, "123", []HypothesisScore{
		{HypothesisID: 1, Score: 39, SupportType: "supports"},
		{HypothesisID: 2, Score: 0, SupportType: "contradicts"},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(store.links) != 0 {
		t.Fatalf("expected no links, got %d", len(store.links))
	}
	for _, r := range results {
		if r.Linked || r.Created {
			t.Fatalf("unexpected link result: %+v", r)
		}
	}
}

func TestLinkArticle_IsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	scores := []HypothesisScore{
		{HypothesisID: 7, Score: 85, SupportType: "supports", KeyFinding: "dose response"},
	}

	first, err := LinkArticle(context.Background(), store, "555", scores)
	if err != nil {
		t.Fatalf("first link failed: %v", err)
	}
	second, err := LinkArticle(context.Background(), store, "555", scores)
	if err != nil {
		t.Fatalf("second link failed: %v", err)
	}

	if len(store.links) != 1 {
		t.Fatalf("expected exactly one link, got %d", len(store.links))
	}
	if !first[0].Created {
		t.Fatal("first triage should create the link")
	}
	if second[0].Created || !second[0].Linked {
		t.Fatalf("second triage should report an existing link, got %+v", second[0])
	}

	link := store.links["7/555"]
	if link.EvidenceType != "supports" || link.Strength != "moderate" || link.AddedBy.Valid {
		t.Fatalf("unexpected stored link: %+v", link)
	}
}

func TestLinkArticle_PropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.err = errors.New("connection reset")

	_, err := LinkArticle(context.Background(), store, "1", []HypothesisScore{
		{HypothesisID: 1, Score: 95, SupportType: "supports"},
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestTouched(t *testing.T) {
	t.Parallel()

	got := Touched([]LinkResult{
		{HypothesisID: 1, Linked: true, Created: true},
		{HypothesisID: 2, Linked: true},
		{HypothesisID: 3},
	})
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v, want [1]", got)
	}
}
