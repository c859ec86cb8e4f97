// Package evidence turns AI triage scores into hypothesis evidence links.
//
// A paper is linked to a hypothesis only when its per-hypothesis relevance
// score reaches MinLinkScore. The AI supplied support type decides the
// direction of the link and the score decides its strength. Links created
// here carry no author, which marks them as AI generated.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"

	"github.com/jackc/pgx/v5"
)

// MinLinkScore is the lowest relevance score that produces an evidence link.
const MinLinkScore = 40

// Decision describes the link that should exist for a scored paper.
type Decision struct {
	EvidenceType common.EvidenceType `json:"evidence_type"`
	Strength     common.Strength     `json:"strength"`
	Score        int                 `json:"score"`
}

// HypothesisScore is one AI verdict of a paper against a hypothesis.
type HypothesisScore struct {
	HypothesisID int64
	Score        int
	SupportType  string
	KeyFinding   string
}

// LinkResult reports what happened for a single hypothesis.
type LinkResult struct {
	HypothesisID int64    `json:"hypothesis_id"`
	Decision     Decision `json:"decision"`
	Linked       bool     `json:"linked"`
	// Created is false when the link already existed.
	Created bool `json:"created"`
}

// Store is the persistence needed to create evidence links.
type Store interface {
	CreateAIEvidenceLink(ctx context.Context, arg pgdb.CreateAIEvidenceLinkParams) (pgdb.HypothesisEvidence, error)
}

// EvidenceTypeFor maps an AI support type label to an evidence type.
func EvidenceTypeFor(supportType string) common.EvidenceType {
	switch strings.ToLower(strings.TrimSpace(supportType)) {
	case "supports", "tests":
		return common.EvidenceSupports
	case "contradicts":
		return common.EvidenceContradicts
	default:
		return common.EvidenceNeutral
	}
}

// StrengthFor buckets a relevance score. Callers are expected to have
// applied the MinLinkScore gate already.
func StrengthFor(score int) common.Strength {
	score = common.ClampScore(score)
	switch {
	case score >= 90:
		return common.StrengthStrong
	case score >= 70:
		return common.StrengthModerate
	default:
		return common.StrengthWeak
	}
}

// Decide returns the link to create for score and supportType, or false when
// the score is below MinLinkScore.
func Decide(score int, supportType string) (Decision, bool) {
	if score < MinLinkScore {
		return Decision{}, false
	}
	score = common.ClampScore(score)
	return Decision{
		EvidenceType: EvidenceTypeFor(supportType),
		Strength:     StrengthFor(score),
		Score:        score,
	}, true
}

// LinkArticle creates AI evidence links between articlePMID and every
// hypothesis whose score passes the gate. Existing links are left untouched,
// so re-triaging the same paper is idempotent.
//
// q is usually bound to the transaction that also stores the triage row.
func LinkArticle(ctx context.Context, q Store, articlePMID string, scores []HypothesisScore) ([]LinkResult, error) {
	results := make([]LinkResult, 0, len(scores))
	for _, s := range scores {
		decision, ok := Decide(s.Score, s.SupportType)
		if !ok {
			results = append(results, LinkResult{HypothesisID: s.HypothesisID})
			continue
		}

		_, err := q.CreateAIEvidenceLink(ctx, pgdb.CreateAIEvidenceLinkParams{
			HypothesisID:   s.HypothesisID,
			ArticlePmid:    articlePMID,
			EvidenceType:   string(decision.EvidenceType),
			Strength:       string(decision.Strength),
			KeyFinding:     s.KeyFinding,
			RelevanceScore: int32(decision.Score),
		})
		created := true
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("failed to link article %s to hypothesis %d: %w", articlePMID, s.HypothesisID, err)
			}
			created = false
		}

		results = append(results, LinkResult{
			HypothesisID: s.HypothesisID,
			Decision:     decision,
			Linked:       true,
			Created:      created,
		})
	}
	return results, nil
}

// Touched returns the hypothesis ids that got a new link.
func Touched(results []LinkResult) []int64 {
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		if r.Created {
			ids = append(ids, r.HypothesisID)
		}
	}
	return ids
}
