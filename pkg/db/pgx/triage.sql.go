package pgdb

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

const triageColumns = `id, project_id, article_pmid, relevance_score, triage_status, reasoning,
       hypothesis_relevance, question_relevance, created_at, updated_at`

const upsertPaperTriage = `-- name: UpsertPaperTriage :one
INSERT INTO paper_triage (project_id, article_pmid, relevance_score, triage_status, reasoning, hypothesis_relevance, question_relevance)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (project_id, article_pmid) DO UPDATE
SET relevance_score      = EXCLUDED.relevance_score,
    triage_status        = EXCLUDED.triage_status,
    reasoning            = EXCLUDED.reasoning,
    hypothesis_relevance = EXCLUDED.hypothesis_relevance,
    question_relevance   = EXCLUDED.question_relevance,
    updated_at           = now()
RETURNING ` + triageColumns

type UpsertPaperTriageParams struct {
	ProjectID           int64           `json:"project_id"`
	ArticlePmid         string          `json:"article_pmid"`
	RelevanceScore      int32           `json:"relevance_score"`
	TriageStatus        string          `json:"triage_status"`
	Reasoning           string          `json:"reasoning"`
	HypothesisRelevance json.RawMessage `json:"hypothesis_relevance"`
	QuestionRelevance   json.RawMessage `json:"question_relevance"`
}

func (q *Queries) UpsertPaperTriage(ctx context.Context, arg UpsertPaperTriageParams) (PaperTriage, error) {
	rows, err := q.db.Query(ctx, upsertPaperTriage,
		arg.ProjectID,
		arg.ArticlePmid,
		arg.RelevanceScore,
		arg.TriageStatus,
		arg.Reasoning,
		arg.HypothesisRelevance,
		arg.QuestionRelevance,
	)
	if err != nil {
		return PaperTriage{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[PaperTriage])
}

const getPaperTriage = `-- name: GetPaperTriage :one
SELECT ` + triageColumns + ` FROM paper_triage WHERE project_id = $1 AND article_pmid = $2
`

type GetPaperTriageParams struct {
	ProjectID   int64  `json:"project_id"`
	ArticlePmid string `json:"article_pmid"`
}

func (q *Queries) GetPaperTriage(ctx context.Context, arg GetPaperTriageParams) (PaperTriage, error) {
	rows, err := q.db.Query(ctx, getPaperTriage, arg.ProjectID, arg.ArticlePmid)
	if err != nil {
		return PaperTriage{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[PaperTriage])
}

const listTriageByProject = `-- name: ListTriageByProject :many
SELECT ` + triageColumns + `
FROM paper_triage
WHERE project_id = $1
ORDER BY relevance_score DESC, article_pmid
`

func (q *Queries) ListTriageByProject(ctx context.Context, projectID int64) ([]PaperTriage, error) {
	rows, err := q.db.Query(ctx, listTriageByProject, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[PaperTriage])
}

const listTriageByStatus = `-- name: ListTriageByStatus :many
SELECT ` + triageColumns + `
FROM paper_triage
WHERE project_id = $1 AND triage_status = $2
ORDER BY relevance_score DESC, article_pmid
`

type ListTriageByStatusParams struct {
	ProjectID    int64  `json:"project_id"`
	TriageStatus string `json:"triage_status"`
}

func (q *Queries) ListTriageByStatus(ctx context.Context, arg ListTriageByStatusParams) ([]PaperTriage, error) {
	rows, err := q.db.Query(ctx, listTriageByStatus, arg.ProjectID, arg.TriageStatus)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[PaperTriage])
}
