package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const collectionColumns = `id, project_id, name, description, source_type, created_by, created_at`

const createCollection = `-- name: CreateCollection :one
INSERT INTO collections (project_id, name, description, source_type, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + collectionColumns

type CreateCollectionParams struct {
	ProjectID   int64       `json:"project_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	SourceType  string      `json:"source_type"`
	CreatedBy   pgtype.Int8 `json:"created_by"`
}

func (q *Queries) CreateCollection(ctx context.Context, arg CreateCollectionParams) (Collection, error) {
	rows, err := q.db.Query(ctx, createCollection,
		arg.ProjectID,
		arg.Name,
		arg.Description,
		arg.SourceType,
		arg.CreatedBy,
	)
	if err != nil {
		return Collection{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Collection])
}

const getCollection = `-- name: GetCollection :one
SELECT ` + collectionColumns + ` FROM collections WHERE id = $1
`

func (q *Queries) GetCollection(ctx context.Context, id int64) (Collection, error) {
	rows, err := q.db.Query(ctx, getCollection, id)
	if err != nil {
		return Collection{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Collection])
}

const listCollectionsByProject = `-- name: ListCollectionsByProject :many
SELECT c.id, c.project_id, c.name, c.description, c.source_type, c.created_by, c.created_at,
       COUNT(ac.article_pmid) AS paper_count
FROM collections c
LEFT JOIN article_collections ac ON ac.collection_id = c.id
WHERE c.project_id = $1
GROUP BY c.id
ORDER BY c.id
`

type ListCollectionsByProjectRow struct {
	ID          int64              `db:"id" json:"id"`
	ProjectID   int64              `db:"project_id" json:"project_id"`
	Name        string             `db:"name" json:"name"`
	Description string             `db:"description" json:"description"`
	SourceType  string             `db:"source_type" json:"source_type"`
	CreatedBy   pgtype.Int8        `db:"created_by" json:"created_by"`
	CreatedAt   pgtype.Timestamptz `db:"created_at" json:"created_at"`
	PaperCount  int64              `db:"paper_count" json:"paper_count"`
}

func (q *Queries) ListCollectionsByProject(ctx context.Context, projectID int64) ([]ListCollectionsByProjectRow, error) {
	rows, err := q.db.Query(ctx, listCollectionsByProject, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ListCollectionsByProjectRow])
}

const deleteCollection = `-- name: DeleteCollection :execrows
DELETE FROM collections WHERE id = $1
`

func (q *Queries) DeleteCollection(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteCollection, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const addArticleToCollection = `-- name: AddArticleToCollection :execrows
INSERT INTO article_collections (collection_id, article_pmid, added_by)
VALUES ($1, $2, $3)
ON CONFLICT (collection_id, article_pmid) DO NOTHING
`

type AddArticleToCollectionParams struct {
	CollectionID int64       `json:"collection_id"`
	ArticlePmid  string      `json:"article_pmid"`
	AddedBy      pgtype.Int8 `json:"added_by"`
}

func (q *Queries) AddArticleToCollection(ctx context.Context, arg AddArticleToCollectionParams) (int64, error) {
	result, err := q.db.Exec(ctx, addArticleToCollection, arg.CollectionID, arg.ArticlePmid, arg.AddedBy)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const removeArticleFromCollection = `-- name: RemoveArticleFromCollection :execrows
DELETE FROM article_collections WHERE collection_id = $1 AND article_pmid = $2
`

type RemoveArticleFromCollectionParams struct {
	CollectionID int64  `json:"collection_id"`
	ArticlePmid  string `json:"article_pmid"`
}

func (q *Queries) RemoveArticleFromCollection(ctx context.Context, arg RemoveArticleFromCollectionParams) (int64, error) {
	result, err := q.db.Exec(ctx, removeArticleFromCollection, arg.CollectionID, arg.ArticlePmid)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listCollectionArticles = `-- name: ListCollectionArticles :many
SELECT a.pmid, a.title, a.abstract, a.journal, a.pub_year, a.doi, a.pdf_key, a.created_at, a.updated_at
FROM articles a
JOIN article_collections ac ON ac.article_pmid = a.pmid
WHERE ac.collection_id = $1
ORDER BY ac.created_at, a.pmid
`

func (q *Queries) ListCollectionArticles(ctx context.Context, collectionID int64) ([]Article, error) {
	rows, err := q.db.Query(ctx, listCollectionArticles, collectionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Article])
}
