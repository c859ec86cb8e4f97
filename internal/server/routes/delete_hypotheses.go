package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// DeleteHypothesisHandler deletes a hypothesis together with its evidence
// links.
func DeleteHypothesisHandler(c echo.Context) error {
	type deleteHypothesisParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	params := new(deleteHypothesisParams)
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

	if _, err := q.DeleteHypothesis(ctx, hyp.ID); err != nil {
		logger.Error("Failed to delete hypothesis", "hypothesis_id", hyp.ID, "err", err)
		return internalError(c)
	}
	if err := app.Cache.InvalidateProject(ctx, hyp.ProjectID); err != nil {
		logger.Warn("Failed to invalidate project cache", "project_id", hyp.ProjectID, "err", err)
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Hypothesis deleted"})
}
