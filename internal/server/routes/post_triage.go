package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/rd-agent/backend/internal/queue"
	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/leaselock"
	"github.com/rd-agent/backend/pkg/logger"
	"github.com/rd-agent/backend/pkg/triage"
)

const (
	defaultTriageTimeout = 90 * time.Second
	maxBatchTriage       = 500
	batchEnqueueWorkers  = 8
)

// TriagePaperHandler scores one project paper synchronously and returns
// the stored triage row together with the evidence links and status
// changes it caused.
func TriagePaperHandler(c echo.Context) error {
	type triagePaperBody struct {
		ID   int64  `param:"id" validate:"required,min=1"`
		Pmid string `json:"pmid" validate:"required,numeric,max=12"`
	}

	type triagePaperResponse struct {
		Message string         `json:"message"`
		Result  *triage.Result `json:"result,omitempty"`
	}

	data := new(triagePaperBody)
	if err := c.Bind(data); err != nil {
		return invalidBody(c)
	}
	if err := c.Validate(data); err != nil {
		return invalidBody(c)
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	q := pgdb.New(app.DBConn)
	if err := middleware.CheckProjectAccess(ctx, q, user, data.ID, true); err != nil {
		return accessDenied(c, err)
	}

	inProject, err := q.IsArticleInProject(ctx, pgdb.IsArticleInProjectParams{
		ProjectID:   data.ID,
		ArticlePmid: data.Pmid,
	})
	if err != nil {
		logger.Error("Failed to check paper", "project_id", data.ID, "pmid", data.Pmid, "err", err)
		return internalError(c)
	}
	if !inProject {
		return c.JSON(http.StatusNotFound, triagePaperResponse{Message: "Paper is not part of this project"})
	}

	timeout := app.TriageTimeout
	if timeout <= 0 {
		timeout = defaultTriageTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result triage.Result
	err = app.Locks.WithLease(ctx, leaselock.TriageKey(data.ID), leaselock.Options{
		TTL:  timeout + 30*time.Second,
		Wait: true,
	}, func(ctx context.Context) error {
		var err error
		result, err = app.Triage.TriageArticle(ctx, data.ID, data.Pmid)
		return err
	})

	if err != nil {
		status, message := triageFailure(err)
		if status == 0 {
			logger.Error("Failed to triage paper", "project_id", data.ID, "pmid", data.Pmid, "err", err)
			return internalError(c)
		}
		return c.JSON(status, triagePaperResponse{Message: message})
	}

	return c.JSON(http.StatusOK, triagePaperResponse{
		Message: "Paper triaged",
		Result:  &result,
	})
}

// triageFailure maps a sync triage error to a response. A zero status means
// the error is unexpected. Timeouts are checked first because a model call
// that runs out of time is also reported as a scoring failure.
func triageFailure(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Triage timed out"
	case errors.Is(err, triage.ErrScoringFailed):
		return http.StatusBadGateway, "AI scoring failed, paper was skipped"
	case errors.Is(err, triage.ErrNoContent):
		return http.StatusUnprocessableEntity, "Paper has no title or abstract"
	case errors.Is(err, pgx.ErrNoRows):
		return http.StatusNotFound, "Paper not found"
	default:
		return 0, ""
	}
}

// TriageBatchHandler queues triage for several project papers. Without a
// PMID list every paper of the project is queued.
func TriageBatchHandler(c echo.Context) error {
	type triageBatchBody struct {
		ID    int64    `param:"id" validate:"required,min=1"`
		Pmids []string `json:"pmids" validate:"max=500,dive,numeric,max=12"`
	}

	type triageBatchResponse struct {
		Message string   `json:"message"`
		Queued  int64    `json:"queued"`
		Skipped []string `json:"skipped,omitempty"`
	}

	data := new(triageBatchBody)
	if err := c.Bind(data); err != nil {
		return invalidBody(c)
	}
	if err := c.Validate(data); err != nil {
		return invalidBody(c)
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	q := pgdb.New(app.DBConn)
	if err := middleware.CheckProjectAccess(ctx, q, user, data.ID, true); err != nil {
		return accessDenied(c, err)
	}

	articles, err := q.ListProjectArticles(ctx, data.ID)
	if err != nil {
		logger.Error("Failed to list papers", "project_id", data.ID, "err", err)
		return internalError(c)
	}
	inProject := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		inProject[a.Pmid] = struct{}{}
	}

	var pmids, skipped []string
	if len(data.Pmids) == 0 {
		for _, a := range articles {
			pmids = append(pmids, a.Pmid)
		}
	} else {
		seen := make(map[string]struct{}, len(data.Pmids))
		for _, pmid := range data.Pmids {
			if _, dup := seen[pmid]; dup {
				continue
			}
			seen[pmid] = struct{}{}
			if _, ok := inProject[pmid]; !ok {
				skipped = append(skipped, pmid)
				continue
			}
			pmids = append(pmids, pmid)
		}
	}
	if len(pmids) > maxBatchTriage {
		pmids = pmids[:maxBatchTriage]
	}

	var queued atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchEnqueueWorkers)
	for _, pmid := range pmids {
		g.Go(func() error {
			err := queue.EnqueueTriage(gctx, app.Queue, queue.TriageMsg{
				ProjectID:   data.ID,
				ArticlePmid: pmid,
				RequestedBy: user.UserID,
			})
			if err != nil {
				return fmt.Errorf("failed to enqueue %s: %w", pmid, err)
			}
			queued.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("Failed to enqueue triage batch", "project_id", data.ID, "queued", queued.Load(), "err", err)
		return c.JSON(http.StatusInternalServerError, triageBatchResponse{
			Message: "Internal server error",
			Queued:  queued.Load(),
		})
	}

	return c.JSON(http.StatusAccepted, triageBatchResponse{
		Message: "Triage queued",
		Queued:  queued.Load(),
		Skipped: skipped,
	})
}
