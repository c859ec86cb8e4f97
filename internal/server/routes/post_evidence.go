package routes

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/queue"
	"github.com/rd-agent/backend/internal/server/middleware"
	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/hypothesis"
	"github.com/rd-agent/backend/pkg/logger"
)

// AddEvidenceHandler links a project paper to a hypothesis by hand and
// recomputes the hypothesis status in the same transaction. A manual link
// replaces an AI link for the same paper.
func AddEvidenceHandler(c echo.Context) error {
	type addEvidenceBody struct {
		ID           int64  `param:"id" validate:"required,min=1"`
		Pmid         string `json:"pmid" validate:"required,numeric,max=12"`
		EvidenceType string `json:"evidence_type" validate:"required,oneof=supports contradicts neutral"`
		Strength     string `json:"strength" validate:"required,oneof=strong moderate weak"`
		KeyFinding   string `json:"key_finding" validate:"max=2000"`
	}

	type addEvidenceResponse struct {
		Message    string                   `json:"message"`
		Evidence   *pgdb.HypothesisEvidence `json:"evidence,omitempty"`
		Hypothesis *pgdb.Hypothesis         `json:"hypothesis,omitempty"`
	}

	data := new(addEvidenceBody)
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

	hyp, ok, err := hypothesisForUser(c, q, user, data.ID, true)
	if !ok {
		return err
	}

	inProject, err := q.IsArticleInProject(ctx, pgdb.IsArticleInProjectParams{
		ProjectID:   hyp.ProjectID,
		ArticlePmid: data.Pmid,
	})
	if err != nil {
		logger.Error("Failed to check paper", "project_id", hyp.ProjectID, "pmid", data.Pmid, "err", err)
		return internalError(c)
	}
	if !inProject {
		return c.JSON(http.StatusBadRequest, addEvidenceResponse{
			Message: "Paper is not part of this project",
		})
	}

	tx, err := app.DBConn.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin transaction", "err", err)
		return internalError(c)
	}
	defer tx.Rollback(ctx)
	qtx := q.WithTx(tx)

	link, err := qtx.UpsertManualEvidenceLink(ctx, pgdb.UpsertManualEvidenceLinkParams{
		HypothesisID: hyp.ID,
		ArticlePmid:  data.Pmid,
		EvidenceType: data.EvidenceType,
		Strength:     data.Strength,
		KeyFinding:   data.KeyFinding,
		AddedBy:      userRef(user),
	})
	if err != nil {
		logger.Error("Failed to store evidence", "hypothesis_id", hyp.ID, "pmid", data.Pmid, "err", err)
		return internalError(c)
	}

	update, err := hypothesis.Recompute(ctx, qtx, hyp.ID)
	if err != nil {
		logger.Error("Failed to recompute hypothesis", "hypothesis_id", hyp.ID, "err", err)
		return internalError(c)
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Failed to commit transaction", "err", err)
		return internalError(c)
	}
	afterEvidenceChange(ctx, app, hyp.ProjectID, user.UserID, update)

	return c.JSON(http.StatusCreated, addEvidenceResponse{
		Message:    "Evidence added",
		Evidence:   &link,
		Hypothesis: &update.Hypothesis,
	})
}

// RecomputeHypothesisHandler rederives a hypothesis status from its
// current evidence links.
func RecomputeHypothesisHandler(c echo.Context) error {
	type recomputeParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	type recomputeResponse struct {
		Message string             `json:"message"`
		Update  *hypothesis.Update `json:"update,omitempty"`
	}

	params := new(recomputeParams)
	if err := c.Bind(params); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(params); err != nil {
		return invalidParams(c)
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	q := pgdb.New(app.DBConn)

	hyp, ok, err := hypothesisForUser(c, q, user, params.ID, true)
	if !ok {
		return err
	}

	var update hypothesis.Update
	err = pgdb.WithTransaction(ctx, app.DBConn, func(qtx *pgdb.Queries) error {
		var err error
		update, err = hypothesis.Recompute(ctx, qtx, hyp.ID)
		return err
	})
	if err != nil {
		logger.Error("Failed to recompute hypothesis", "hypothesis_id", hyp.ID, "err", err)
		return internalError(c)
	}
	afterEvidenceChange(ctx, app, hyp.ProjectID, user.UserID, update)

	return c.JSON(http.StatusOK, recomputeResponse{
		Message: "Hypothesis recomputed",
		Update:  &update,
	})
}

func afterEvidenceChange(ctx context.Context, app *middleware.App, projectID, actorID int64, update hypothesis.Update) {
	if err := app.Cache.InvalidateProject(ctx, projectID); err != nil {
		logger.Warn("Failed to invalidate project cache", "project_id", projectID, "err", err)
	}
	if !update.StatusChanged() {
		return
	}

	err := queue.EnqueueNotify(ctx, app.Queue, queue.NotifyMsg{
		Kind:      common.NotifyStatusChanged,
		ProjectID: projectID,
		ActorID:   actorID,
		Payload: queue.NotifyPayload{
			HypothesisID:   update.Hypothesis.ID,
			HypothesisText: update.Hypothesis.Text,
			OldStatus:      string(update.PreviousStatus),
			NewStatus:      string(update.Assessment.Status),
			Confidence:     update.Assessment.Confidence,
		},
	})
	if err != nil {
		logger.Warn("Failed to enqueue status notification", "hypothesis_id", update.Hypothesis.ID, "err", err)
	}
}
