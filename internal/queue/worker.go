package queue

import (
	"context"
	"fmt"

	"github.com/rd-agent/backend/internal/email"
	"github.com/rd-agent/backend/internal/flags"
	"github.com/rd-agent/backend/pkg/ai"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/leaselock"
	"github.com/rd-agent/backend/pkg/triage"
)

// Store is the query surface the worker needs. *pgdb.Queries implements it.
type Store interface {
	GetProjectByID(ctx context.Context, id int64) (pgdb.Project, error)
	ListProjectMemberIDs(ctx context.Context, projectID int64) ([]int64, error)
	GetUsersByIDs(ctx context.Context, ids []int64) ([]pgdb.User, error)
	CreateNotificationsForUsers(ctx context.Context, arg pgdb.CreateNotificationsForUsersParams) ([]pgdb.Notification, error)

	GetArticle(ctx context.Context, pmid string) (pgdb.Article, error)
	SetArticlePdfKey(ctx context.Context, arg pgdb.SetArticlePdfKeyParams) error

	ListHypothesesByProject(ctx context.Context, projectID int64) ([]pgdb.Hypothesis, error)
	ListEvidenceByHypothesis(ctx context.Context, hypothesisID int64) ([]pgdb.HypothesisEvidence, error)
	ListTriageByProject(ctx context.Context, projectID int64) ([]pgdb.PaperTriage, error)
	ListExperimentResultsByProject(ctx context.Context, projectID int64) ([]pgdb.ExperimentResult, error)
	UpsertProjectSummary(ctx context.Context, arg pgdb.UpsertProjectSummaryParams) (pgdb.ProjectSummary, error)
}

type Triager interface {
	TriageArticle(ctx context.Context, projectID int64, pmid string) (triage.Result, error)
}

type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

type PDFSource interface {
	PDFURL(ctx context.Context, doi string) (string, error)
	Download(ctx context.Context, pdfURL string) ([]byte, error)
}

type ObjectStore interface {
	PutPDF(ctx context.Context, pmid string, data []byte) (string, error)
	DeleteArticleFiles(ctx context.Context, pmid string) error
}

type Invalidator interface {
	InvalidateProject(ctx context.Context, projectID int64) error
}

// Worker processes messages of every queue in Queues.
type Worker struct {
	Store     Store
	Triage    Triager
	Locks     Locker
	AI        ai.Client
	Publisher Publisher
	Cache     Invalidator
	Flags     flags.Flags

	// Mailer is nil when email is not configured.
	Mailer     email.Sender
	AppBaseURL string

	PDFSource PDFSource
	Objects   ObjectStore

	SummaryModel string
}

// Process routes a message body to the handler of queueName. A nil error
// acks the message, anything else sends it through the retry queue.
func (w *Worker) Process(ctx context.Context, queueName string, body []byte) error {
	switch queueName {
	case TriageQueue:
		return w.ProcessTriage(ctx, body)
	case NotifyQueue:
		return w.ProcessNotify(ctx, body)
	case PDFQueue:
		return w.ProcessPDF(ctx, body)
	case SummaryQueue:
		return w.ProcessSummary(ctx, body)
	}
	return fmt.Errorf("unknown queue %q", queueName)
}

func (w *Worker) projectURL(projectID int64) string {
	return fmt.Sprintf("%s/projects/%d", w.AppBaseURL, projectID)
}
