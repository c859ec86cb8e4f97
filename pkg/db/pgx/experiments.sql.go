package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const experimentColumns = `id, project_id, hypothesis_id, title, outcome, notes, created_by, created_at, updated_at`

const createExperimentResult = `-- name: CreateExperimentResult :one
INSERT INTO experiment_results (project_id, hypothesis_id, title, outcome, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + experimentColumns

type CreateExperimentResultParams struct {
	ProjectID    int64       `json:"project_id"`
	HypothesisID pgtype.Int8 `json:"hypothesis_id"`
	Title        string      `json:"title"`
	Outcome      string      `json:"outcome"`
	Notes        string      `json:"notes"`
	CreatedBy    int64       `json:"created_by"`
}

func (q *Queries) CreateExperimentResult(ctx context.Context, arg CreateExperimentResultParams) (ExperimentResult, error) {
	rows, err := q.db.Query(ctx, createExperimentResult,
		arg.ProjectID,
		arg.HypothesisID,
		arg.Title,
		arg.Outcome,
		arg.Notes,
		arg.CreatedBy,
	)
	if err != nil {
		return ExperimentResult{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[ExperimentResult])
}

const getExperimentResult = `-- name: GetExperimentResult :one
SELECT ` + experimentColumns + ` FROM experiment_results WHERE id = $1
`

func (q *Queries) GetExperimentResult(ctx context.Context, id int64) (ExperimentResult, error) {
	rows, err := q.db.Query(ctx, getExperimentResult, id)
	if err != nil {
		return ExperimentResult{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[ExperimentResult])
}

const listExperimentResultsByProject = `-- name: ListExperimentResultsByProject :many
SELECT ` + experimentColumns + `
FROM experiment_results
WHERE project_id = $1
ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListExperimentResultsByProject(ctx context.Context, projectID int64) ([]ExperimentResult, error) {
	rows, err := q.db.Query(ctx, listExperimentResultsByProject, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ExperimentResult])
}

const updateExperimentResult = `-- name: UpdateExperimentResult :one
UPDATE experiment_results
SET title = $2, outcome = $3, notes = $4, updated_at = now()
WHERE id = $1
RETURNING ` + experimentColumns

type UpdateExperimentResultParams struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Outcome string `json:"outcome"`
	Notes   string `json:"notes"`
}

func (q *Queries) UpdateExperimentResult(ctx context.Context, arg UpdateExperimentResultParams) (ExperimentResult, error) {
	rows, err := q.db.Query(ctx, updateExperimentResult, arg.ID, arg.Title, arg.Outcome, arg.Notes)
	if err != nil {
		return ExperimentResult{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[ExperimentResult])
}
