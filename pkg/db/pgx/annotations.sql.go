package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const annotationColumns = `id, project_id, article_pmid, user_id, content, note_type, created_at`

const createAnnotation = `-- name: CreateAnnotation :one
INSERT INTO annotations (project_id, article_pmid, user_id, content, note_type)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + annotationColumns

type CreateAnnotationParams struct {
	ProjectID   int64  `json:"project_id"`
	ArticlePmid string `json:"article_pmid"`
	UserID      int64  `json:"user_id"`
	Content     string `json:"content"`
	NoteType    string `json:"note_type"`
}

func (q *Queries) CreateAnnotation(ctx context.Context, arg CreateAnnotationParams) (Annotation, error) {
	rows, err := q.db.Query(ctx, createAnnotation,
		arg.ProjectID,
		arg.ArticlePmid,
		arg.UserID,
		arg.Content,
		arg.NoteType,
	)
	if err != nil {
		return Annotation{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Annotation])
}

const getAnnotation = `-- name: GetAnnotation :one
SELECT ` + annotationColumns + ` FROM annotations WHERE id = $1
`

func (q *Queries) GetAnnotation(ctx context.Context, id int64) (Annotation, error) {
	rows, err := q.db.Query(ctx, getAnnotation, id)
	if err != nil {
		return Annotation{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Annotation])
}

const listAnnotationsByProject = `-- name: ListAnnotationsByProject :many
SELECT ` + annotationColumns + `
FROM annotations
WHERE project_id = $1
  AND ($2::text IS NULL OR article_pmid = $2::text)
ORDER BY created_at DESC, id DESC
`

type ListAnnotationsByProjectParams struct {
	ProjectID   int64       `json:"project_id"`
	ArticlePmid pgtype.Text `json:"article_pmid"`
}

func (q *Queries) ListAnnotationsByProject(ctx context.Context, arg ListAnnotationsByProjectParams) ([]Annotation, error) {
	rows, err := q.db.Query(ctx, listAnnotationsByProject, arg.ProjectID, arg.ArticlePmid)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Annotation])
}

const deleteAnnotation = `-- name: DeleteAnnotation :execrows
DELETE FROM annotations WHERE id = $1
`

func (q *Queries) DeleteAnnotation(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteAnnotation, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
