package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/hypothesis"
	"github.com/rd-agent/backend/pkg/logger"
)

// DeleteEvidenceHandler removes the link between a hypothesis and a paper
// and recomputes the hypothesis status.
func DeleteEvidenceHandler(c echo.Context) error {
	type deleteEvidenceParams struct {
		ID   int64  `param:"id" validate:"required,min=1"`
		Pmid string `param:"pmid" validate:"required,numeric,max=12"`
	}

	type deleteEvidenceResponse struct {
		Message    string           `json:"message"`
		Hypothesis *pgdb.Hypothesis `json:"hypothesis,omitempty"`
	}

	params := new(deleteEvidenceParams)
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

	tx, err := app.DBConn.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin transaction", "err", err)
		return internalError(c)
	}
	defer tx.Rollback(ctx)
	qtx := q.WithTx(tx)

	n, err := qtx.DeleteEvidenceLink(ctx, pgdb.DeleteEvidenceLinkParams{
		HypothesisID: hyp.ID,
		ArticlePmid:  params.Pmid,
	})
	if err != nil {
		logger.Error("Failed to delete evidence", "hypothesis_id", hyp.ID, "pmid", params.Pmid, "err", err)
		return internalError(c)
	}
	if n == 0 {
		return c.JSON(http.StatusNotFound, deleteEvidenceResponse{Message: "Evidence not found"})
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

	return c.JSON(http.StatusOK, deleteEvidenceResponse{
		Message:    "Evidence removed",
		Hypothesis: &update.Hypothesis,
	})
}
