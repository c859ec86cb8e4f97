package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const hypothesisColumns = `id, project_id, question_id, text, status, confidence_level,
       supporting_evidence_count, contradicting_evidence_count, neutral_evidence_count,
       created_by, created_at, updated_at`

const createHypothesis = `-- name: CreateHypothesis :one
INSERT INTO hypotheses (project_id, question_id, text, created_by)
VALUES ($1, $2, $3, $4)
RETURNING ` + hypothesisColumns

type CreateHypothesisParams struct {
	ProjectID  int64       `json:"project_id"`
	QuestionID pgtype.Int8 `json:"question_id"`
	Text       string      `json:"text"`
	CreatedBy  pgtype.Int8 `json:"created_by"`
}

func (q *Queries) CreateHypothesis(ctx context.Context, arg CreateHypothesisParams) (Hypothesis, error) {
	rows, err := q.db.Query(ctx, createHypothesis, arg.ProjectID, arg.QuestionID, arg.Text, arg.CreatedBy)
	if err != nil {
		return Hypothesis{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Hypothesis])
}

const getHypothesis = `-- name: GetHypothesis :one
SELECT ` + hypothesisColumns + ` FROM hypotheses WHERE id = $1
`

func (q *Queries) GetHypothesis(ctx context.Context, id int64) (Hypothesis, error) {
	rows, err := q.db.Query(ctx, getHypothesis, id)
	if err != nil {
		return Hypothesis{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Hypothesis])
}

const getHypothesisForUpdate = `-- name: GetHypothesisForUpdate :one
SELECT ` + hypothesisColumns + ` FROM hypotheses WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetHypothesisForUpdate(ctx context.Context, id int64) (Hypothesis, error) {
	rows, err := q.db.Query(ctx, getHypothesisForUpdate, id)
	if err != nil {
		return Hypothesis{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Hypothesis])
}

const listHypothesesByProject = `-- name: ListHypothesesByProject :many
SELECT ` + hypothesisColumns + ` FROM hypotheses WHERE project_id = $1 ORDER BY id
`

func (q *Queries) ListHypothesesByProject(ctx context.Context, projectID int64) ([]Hypothesis, error) {
	rows, err := q.db.Query(ctx, listHypothesesByProject, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Hypothesis])
}

const updateHypothesisText = `-- name: UpdateHypothesisText :one
UPDATE hypotheses
SET text = $2, question_id = $3, updated_at = now()
WHERE id = $1
RETURNING ` + hypothesisColumns

type UpdateHypothesisTextParams struct {
	ID         int64       `json:"id"`
	Text       string      `json:"text"`
	QuestionID pgtype.Int8 `json:"question_id"`
}

func (q *Queries) UpdateHypothesisText(ctx context.Context, arg UpdateHypothesisTextParams) (Hypothesis, error) {
	rows, err := q.db.Query(ctx, updateHypothesisText, arg.ID, arg.Text, arg.QuestionID)
	if err != nil {
		return Hypothesis{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Hypothesis])
}

const deleteHypothesis = `-- name: DeleteHypothesis :execrows
DELETE FROM hypotheses WHERE id = $1
`

func (q *Queries) DeleteHypothesis(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteHypothesis, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateHypothesisAssessment = `-- name: UpdateHypothesisAssessment :one
UPDATE hypotheses
SET status = $2,
    confidence_level = $3,
    supporting_evidence_count = $4,
    contradicting_evidence_count = $5,
    neutral_evidence_count = $6,
    updated_at = now()
WHERE id = $1
RETURNING ` + hypothesisColumns

type UpdateHypothesisAssessmentParams struct {
	ID                         int64  `json:"id"`
	Status                     string `json:"status"`
	ConfidenceLevel            int32  `json:"confidence_level"`
	SupportingEvidenceCount    int32  `json:"supporting_evidence_count"`
	ContradictingEvidenceCount int32  `json:"contradicting_evidence_count"`
	NeutralEvidenceCount       int32  `json:"neutral_evidence_count"`
}

func (q *Queries) UpdateHypothesisAssessment(ctx context.Context, arg UpdateHypothesisAssessmentParams) (Hypothesis, error) {
	rows, err := q.db.Query(ctx, updateHypothesisAssessment,
		arg.ID,
		arg.Status,
		arg.ConfidenceLevel,
		arg.SupportingEvidenceCount,
		arg.ContradictingEvidenceCount,
		arg.NeutralEvidenceCount,
	)
	if err != nil {
		return Hypothesis{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Hypothesis])
}
