package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const evidenceColumns = `id, hypothesis_id, article_pmid, evidence_type, strength, key_finding,
       relevance_score, added_by, created_at`

const createAIEvidenceLink = `-- name: CreateAIEvidenceLink :one
INSERT INTO hypothesis_evidence (hypothesis_id, article_pmid, evidence_type, strength, key_finding, relevance_score, added_by)
VALUES ($1, $2, $3, $4, $5, $6, NULL)
ON CONFLICT (hypothesis_id, article_pmid) DO NOTHING
RETURNING ` + evidenceColumns

type CreateAIEvidenceLinkParams struct {
	HypothesisID   int64  `json:"hypothesis_id"`
	ArticlePmid    string `json:"article_pmid"`
	EvidenceType   string `json:"evidence_type"`
	Strength       string `json:"strength"`
	KeyFinding     string `json:"key_finding"`
	RelevanceScore int32  `json:"relevance_score"`
}

// CreateAIEvidenceLink returns pgx.ErrNoRows when the pair is already linked.
func (q *Queries) CreateAIEvidenceLink(ctx context.Context, arg CreateAIEvidenceLinkParams) (HypothesisEvidence, error) {
	rows, err := q.db.Query(ctx, createAIEvidenceLink,
		arg.HypothesisID,
		arg.ArticlePmid,
		arg.EvidenceType,
		arg.Strength,
		arg.KeyFinding,
		arg.RelevanceScore,
	)
	if err != nil {
		return HypothesisEvidence{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[HypothesisEvidence])
}

const upsertManualEvidenceLink = `-- name: UpsertManualEvidenceLink :one
INSERT INTO hypothesis_evidence (hypothesis_id, article_pmid, evidence_type, strength, key_finding, relevance_score, added_by)
VALUES ($1, $2, $3, $4, $5, 0, $6)
ON CONFLICT (hypothesis_id, article_pmid) DO UPDATE
SET evidence_type = EXCLUDED.evidence_type,
    strength      = EXCLUDED.strength,
    key_finding   = EXCLUDED.key_finding,
    added_by      = EXCLUDED.added_by
RETURNING ` + evidenceColumns

type UpsertManualEvidenceLinkParams struct {
	HypothesisID int64       `json:"hypothesis_id"`
	ArticlePmid  string      `json:"article_pmid"`
	EvidenceType string      `json:"evidence_type"`
	Strength     string      `json:"strength"`
	KeyFinding   string      `json:"key_finding"`
	AddedBy      pgtype.Int8 `json:"added_by"`
}

func (q *Queries) UpsertManualEvidenceLink(ctx context.Context, arg UpsertManualEvidenceLinkParams) (HypothesisEvidence, error) {
	rows, err := q.db.Query(ctx, upsertManualEvidenceLink,
		arg.HypothesisID,
		arg.ArticlePmid,
		arg.EvidenceType,
		arg.Strength,
		arg.KeyFinding,
		arg.AddedBy,
	)
	if err != nil {
		return HypothesisEvidence{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[HypothesisEvidence])
}

const listEvidenceByHypothesis = `-- name: ListEvidenceByHypothesis :many
SELECT ` + evidenceColumns + `
FROM hypothesis_evidence
WHERE hypothesis_id = $1
ORDER BY relevance_score DESC, article_pmid
`

func (q *Queries) ListEvidenceByHypothesis(ctx context.Context, hypothesisID int64) ([]HypothesisEvidence, error) {
	rows, err := q.db.Query(ctx, listEvidenceByHypothesis, hypothesisID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[HypothesisEvidence])
}

const deleteEvidenceLink = `-- name: DeleteEvidenceLink :execrows
DELETE FROM hypothesis_evidence WHERE hypothesis_id = $1 AND article_pmid = $2
`

type DeleteEvidenceLinkParams struct {
	HypothesisID int64  `json:"hypothesis_id"`
	ArticlePmid  string `json:"article_pmid"`
}

func (q *Queries) DeleteEvidenceLink(ctx context.Context, arg DeleteEvidenceLinkParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteEvidenceLink, arg.HypothesisID, arg.ArticlePmid)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const countEvidenceByType = `-- name: CountEvidenceByType :one
SELECT
    COUNT(*) FILTER (WHERE evidence_type = 'supports')    AS supporting,
    COUNT(*) FILTER (WHERE evidence_type = 'contradicts') AS contradicting,
    COUNT(*) FILTER (WHERE evidence_type = 'neutral')     AS neutral
FROM hypothesis_evidence
WHERE hypothesis_id = $1
`

type CountEvidenceByTypeRow struct {
	Supporting    int64 `db:"supporting" json:"supporting"`
	Contradicting int64 `db:"contradicting" json:"contradicting"`
	Neutral       int64 `db:"neutral" json:"neutral"`
}

func (q *Queries) CountEvidenceByType(ctx context.Context, hypothesisID int64) (CountEvidenceByTypeRow, error) {
	row := q.db.QueryRow(ctx, countEvidenceByType, hypothesisID)
	var i CountEvidenceByTypeRow
	err := row.Scan(&i.Supporting, &i.Contradicting, &i.Neutral)
	return i, err
}
