package triage

import (
	"context"

	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/evidence"
	"github.com/rd-agent/backend/pkg/hypothesis"
)

// Reader is what triage loads before asking the model.
type Reader interface {
	GetArticle(ctx context.Context, pmid string) (pgdb.Article, error)
	GetProjectByID(ctx context.Context, id int64) (pgdb.Project, error)
	ListHypothesesByProject(ctx context.Context, projectID int64) ([]pgdb.Hypothesis, error)
	ListQuestionsByProject(ctx context.Context, projectID int64) ([]pgdb.ResearchQuestion, error)
	HasArticleEmbedding(ctx context.Context, pmid string) (bool, error)
	SetArticleEmbedding(ctx context.Context, arg pgdb.SetArticleEmbeddingParams) error
}

// Writer is what triage changes inside its transaction.
type Writer interface {
	UpsertPaperTriage(ctx context.Context, arg pgdb.UpsertPaperTriageParams) (pgdb.PaperTriage, error)
	evidence.Store
	hypothesis.Store
}

// Store combines reads with a transactional write scope.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(w Writer) error) error
}

type pgStore struct {
	*pgdb.Queries
	conn pgdb.TxStarter
}

// NewPgStore backs Store with a pgx pool.
func NewPgStore(conn interface {
	pgdb.DBTX
	pgdb.TxStarter
}) Store {
	return &pgStore{Queries: pgdb.New(conn), conn: conn}
}

func (s *pgStore) InTx(ctx context.Context, fn func(w Writer) error) error {
	return pgdb.WithTransaction(ctx, s.conn, func(q *pgdb.Queries) error {
		return fn(q)
	})
}
