package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const upsertProjectSummary = `-- name: UpsertProjectSummary :one
INSERT INTO project_summaries (project_id, summary, generated_at)
VALUES ($1, $2, now())
ON CONFLICT (project_id) DO UPDATE
SET summary = EXCLUDED.summary, generated_at = now()
RETURNING project_id, summary, generated_at
`

type UpsertProjectSummaryParams struct {
	ProjectID int64  `json:"project_id"`
	Summary   string `json:"summary"`
}

func (q *Queries) UpsertProjectSummary(ctx context.Context, arg UpsertProjectSummaryParams) (ProjectSummary, error) {
	rows, err := q.db.Query(ctx, upsertProjectSummary, arg.ProjectID, arg.Summary)
	if err != nil {
		return ProjectSummary{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[ProjectSummary])
}

const getProjectSummary = `-- name: GetProjectSummary :one
SELECT project_id, summary, generated_at FROM project_summaries WHERE project_id = $1
`

func (q *Queries) GetProjectSummary(ctx context.Context, projectID int64) (ProjectSummary, error) {
	rows, err := q.db.Query(ctx, getProjectSummary, projectID)
	if err != nil {
		return ProjectSummary{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[ProjectSummary])
}
