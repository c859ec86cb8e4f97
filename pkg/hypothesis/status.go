// Package hypothesis derives the status and confidence of a hypothesis from
// the evidence currently linked to it.
package hypothesis

import (
	"context"
	"fmt"

	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
)

// Counts is the number of evidence links per direction.
type Counts struct {
	Supporting    int `json:"supporting"`
	Contradicting int `json:"contradicting"`
	Neutral       int `json:"neutral"`
}

// Assessment is the derived state of a hypothesis.
type Assessment struct {
	Status     common.HypothesisStatus `json:"status"`
	Confidence int                     `json:"confidence"`
}

// Derive maps evidence counts to a status and confidence. The rules are
// checked in order and the first match wins.
func Derive(c Counts) Assessment {
	s, con := c.Supporting, c.Contradicting

	switch {
	case s >= 3 && con == 0:
		return Assessment{Status: common.StatusSupported, Confidence: min(90, 60+10*(s-3))}
	case con >= 3 && s == 0:
		return Assessment{Status: common.StatusRejected, Confidence: min(90, 60+10*(con-3))}
	case s >= 2 && con >= 2:
		return Assessment{Status: common.StatusInconclusive, Confidence: 50}
	case s >= 1 || con >= 1:
		return Assessment{Status: common.StatusTesting, Confidence: max(40, min(70, 55+5*(s-con)))}
	default:
		return Assessment{Status: common.StatusProposed, Confidence: 30}
	}
}

// Store is the persistence needed to recompute a hypothesis. It must be
// bound to a transaction so the row lock is held until commit.
type Store interface {
	GetHypothesisForUpdate(ctx context.Context, id int64) (pgdb.Hypothesis, error)
	CountEvidenceByType(ctx context.Context, hypothesisID int64) (pgdb.CountEvidenceByTypeRow, error)
	UpdateHypothesisAssessment(ctx context.Context, arg pgdb.UpdateHypothesisAssessmentParams) (pgdb.Hypothesis, error)
}

// Update is the outcome of a recompute.
type Update struct {
	Hypothesis     pgdb.Hypothesis         `json:"hypothesis"`
	PreviousStatus common.HypothesisStatus `json:"previous_status"`
	Counts         Counts                  `json:"counts"`
	Assessment     Assessment              `json:"assessment"`
}

// StatusChanged reports whether the recompute moved the hypothesis to a new status.
func (u Update) StatusChanged() bool {
	return u.PreviousStatus != u.Assessment.Status
}

// Recompute counts the evidence of a hypothesis, derives its assessment and
// stores it. The previous status and counts are never used as input.
//
// The hypothesis row is locked before counting, so concurrent evidence
// changes to the same hypothesis recompute one after the other and the
// last commit sees every committed link.
func Recompute(ctx context.Context, q Store, hypothesisID int64) (Update, error) {
	current, err := q.GetHypothesisForUpdate(ctx, hypothesisID)
	if err != nil {
		return Update{}, fmt.Errorf("failed to load hypothesis %d: %w", hypothesisID, err)
	}

	row, err := q.CountEvidenceByType(ctx, hypothesisID)
	if err != nil {
		return Update{}, fmt.Errorf("failed to count evidence for hypothesis %d: %w", hypothesisID, err)
	}
	counts := Counts{
		Supporting:    int(row.Supporting),
		Contradicting: int(row.Contradicting),
		Neutral:       int(row.Neutral),
	}
	assessment := Derive(counts)

	updated, err := q.UpdateHypothesisAssessment(ctx, pgdb.UpdateHypothesisAssessmentParams{
		ID:                         hypothesisID,
		Status:                     string(assessment.Status),
		ConfidenceLevel:            int32(assessment.Confidence),
		SupportingEvidenceCount:    int32(counts.Supporting),
		ContradictingEvidenceCount: int32(counts.Contradicting),
		NeutralEvidenceCount:       int32(counts.Neutral),
	})
	if err != nil {
		return Update{}, fmt.Errorf("failed to store assessment for hypothesis %d: %w", hypothesisID, err)
	}

	return Update{
		Hypothesis:     updated,
		PreviousStatus: common.HypothesisStatus(current.Status),
		Counts:         counts,
		Assessment:     assessment,
	}, nil
}

// RecomputeAll recomputes every id once, in the given order.
func RecomputeAll(ctx context.Context, q Store, ids []int64) ([]Update, error) {
	seen := make(map[int64]struct{}, len(ids))
	updates := make([]Update, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		u, err := Recompute(ctx, q, id)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}
