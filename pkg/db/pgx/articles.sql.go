package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

const articleColumns = `pmid, title, abstract, journal, pub_year, doi, pdf_key, created_at, updated_at`

const upsertArticle = `-- name: UpsertArticle :one
INSERT INTO articles (pmid, title, abstract, journal, pub_year, doi)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (pmid) DO UPDATE
SET title      = CASE WHEN EXCLUDED.title <> '' THEN EXCLUDED.title ELSE articles.title END,
    abstract   = CASE WHEN EXCLUDED.abstract <> '' THEN EXCLUDED.abstract ELSE articles.abstract END,
    journal    = CASE WHEN EXCLUDED.journal <> '' THEN EXCLUDED.journal ELSE articles.journal END,
    pub_year   = COALESCE(EXCLUDED.pub_year, articles.pub_year),
    doi        = CASE WHEN EXCLUDED.doi <> '' THEN EXCLUDED.doi ELSE articles.doi END,
    updated_at = now()
RETURNING ` + articleColumns

type UpsertArticleParams struct {
	Pmid     string      `json:"pmid"`
	Title    string      `json:"title"`
	Abstract string      `json:"abstract"`
	Journal  string      `json:"journal"`
	PubYear  pgtype.Int4 `json:"pub_year"`
	Doi      string      `json:"doi"`
}

func (q *Queries) UpsertArticle(ctx context.Context, arg UpsertArticleParams) (Article, error) {
	rows, err := q.db.Query(ctx, upsertArticle,
		arg.Pmid,
		arg.Title,
		arg.Abstract,
		arg.Journal,
		arg.PubYear,
		arg.Doi,
	)
	if err != nil {
		return Article{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Article])
}

const getArticle = `-- name: GetArticle :one
SELECT ` + articleColumns + ` FROM articles WHERE pmid = $1
`

func (q *Queries) GetArticle(ctx context.Context, pmid string) (Article, error) {
	rows, err := q.db.Query(ctx, getArticle, pmid)
	if err != nil {
		return Article{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Article])
}

const setArticlePdfKey = `-- name: SetArticlePdfKey :exec
UPDATE articles SET pdf_key = $2, updated_at = now() WHERE pmid = $1
`

type SetArticlePdfKeyParams struct {
	Pmid   string      `json:"pmid"`
	PdfKey pgtype.Text `json:"pdf_key"`
}

func (q *Queries) SetArticlePdfKey(ctx context.Context, arg SetArticlePdfKeyParams) error {
	_, err := q.db.Exec(ctx, setArticlePdfKey, arg.Pmid, arg.PdfKey)
	return err
}

const addArticleToProject = `-- name: AddArticleToProject :execrows
INSERT INTO project_articles (project_id, article_pmid, added_by)
VALUES ($1, $2, $3)
ON CONFLICT (project_id, article_pmid) DO NOTHING
`

type AddArticleToProjectParams struct {
	ProjectID   int64       `json:"project_id"`
	ArticlePmid string      `json:"article_pmid"`
	AddedBy     pgtype.Int8 `json:"added_by"`
}

func (q *Queries) AddArticleToProject(ctx context.Context, arg AddArticleToProjectParams) (int64, error) {
	result, err := q.db.Exec(ctx, addArticleToProject, arg.ProjectID, arg.ArticlePmid, arg.AddedBy)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const isArticleInProject = `-- name: IsArticleInProject :one
SELECT EXISTS (
    SELECT 1 FROM project_articles WHERE project_id = $1 AND article_pmid = $2
)
`

type IsArticleInProjectParams struct {
	ProjectID   int64  `json:"project_id"`
	ArticlePmid string `json:"article_pmid"`
}

func (q *Queries) IsArticleInProject(ctx context.Context, arg IsArticleInProjectParams) (bool, error) {
	row := q.db.QueryRow(ctx, isArticleInProject, arg.ProjectID, arg.ArticlePmid)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const listProjectArticles = `-- name: ListProjectArticles :many
SELECT a.pmid, a.title, a.abstract, a.journal, a.pub_year, a.doi, a.pdf_key, a.created_at, a.updated_at
FROM articles a
JOIN project_articles pa ON pa.article_pmid = a.pmid
WHERE pa.project_id = $1
ORDER BY pa.created_at DESC, a.pmid
`

func (q *Queries) ListProjectArticles(ctx context.Context, projectID int64) ([]Article, error) {
	rows, err := q.db.Query(ctx, listProjectArticles, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Article])
}

const setArticleEmbedding = `-- name: SetArticleEmbedding :exec
UPDATE articles SET embedding = $2 WHERE pmid = $1
`

type SetArticleEmbeddingParams struct {
	Pmid      string          `json:"pmid"`
	Embedding pgvector.Vector `json:"embedding"`
}

func (q *Queries) SetArticleEmbedding(ctx context.Context, arg SetArticleEmbeddingParams) error {
	_, err := q.db.Exec(ctx, setArticleEmbedding, arg.Pmid, arg.Embedding)
	return err
}

const hasArticleEmbedding = `-- name: HasArticleEmbedding :one
SELECT embedding IS NOT NULL FROM articles WHERE pmid = $1
`

func (q *Queries) HasArticleEmbedding(ctx context.Context, pmid string) (bool, error) {
	row := q.db.QueryRow(ctx, hasArticleEmbedding, pmid)
	var ok bool
	err := row.Scan(&ok)
	return ok, err
}

const listRelatedArticles = `-- name: ListRelatedArticles :many
SELECT a.pmid, a.title, a.journal, a.pub_year,
       (a.embedding <=> src.embedding)::float8 AS distance
FROM articles src
JOIN project_articles pa ON pa.project_id = $2
JOIN articles a ON a.pmid = pa.article_pmid
WHERE src.pmid = $1
  AND src.embedding IS NOT NULL
  AND a.embedding IS NOT NULL
  AND a.pmid <> src.pmid
ORDER BY a.embedding <=> src.embedding, a.pmid
LIMIT $3
`

type ListRelatedArticlesParams struct {
	Pmid      string `json:"pmid"`
	ProjectID int64  `json:"project_id"`
	Limit     int32  `json:"limit"`
}

type ListRelatedArticlesRow struct {
	Pmid     string      `db:"pmid" json:"pmid"`
	Title    string      `db:"title" json:"title"`
	Journal  string      `db:"journal" json:"journal"`
	PubYear  pgtype.Int4 `db:"pub_year" json:"pub_year"`
	Distance float64     `db:"distance" json:"distance"`
}

func (q *Queries) ListRelatedArticles(ctx context.Context, arg ListRelatedArticlesParams) ([]ListRelatedArticlesRow, error) {
	rows, err := q.db.Query(ctx, listRelatedArticles, arg.Pmid, arg.ProjectID, arg.Limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ListRelatedArticlesRow])
}
