package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const createQuestion = `-- name: CreateQuestion :one
INSERT INTO research_questions (project_id, text)
VALUES ($1, $2)
RETURNING id, project_id, text, created_at
`

type CreateQuestionParams struct {
	ProjectID int64  `json:"project_id"`
	Text      string `json:"text"`
}

func (q *Queries) CreateQuestion(ctx context.Context, arg CreateQuestionParams) (ResearchQuestion, error) {
	rows, err := q.db.Query(ctx, createQuestion, arg.ProjectID, arg.Text)
	if err != nil {
		return ResearchQuestion{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[ResearchQuestion])
}

const listQuestionsByProject = `-- name: ListQuestionsByProject :many
SELECT id, project_id, text, created_at
FROM research_questions
WHERE project_id = $1
ORDER BY id
`

func (q *Queries) ListQuestionsByProject(ctx context.Context, projectID int64) ([]ResearchQuestion, error) {
	rows, err := q.db.Query(ctx, listQuestionsByProject, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ResearchQuestion])
}
