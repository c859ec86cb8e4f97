package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

func GetHypothesesHandler(c echo.Context) error {
	type getHypothesesParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	type getHypothesesResponse struct {
		Message    string            `json:"message"`
		Hypotheses []pgdb.Hypothesis `json:"hypotheses"`
	}

	params := new(getHypothesesParams)
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

	ctx := c.Request().Context()
	q := pgdb.New(c.(*middleware.AppContext).App.DBConn)
	if err := middleware.CheckProjectAccess(ctx, q, user, params.ID, false); err != nil {
		return accessDenied(c, err)
	}

	hyps, err := q.ListHypothesesByProject(ctx, params.ID)
	if err != nil {
		logger.Error("Failed to list hypotheses", "project_id", params.ID, "err", err)
		return internalError(c)
	}
	if hyps == nil {
		hyps = []pgdb.Hypothesis{}
	}

	return c.JSON(http.StatusOK, getHypothesesResponse{
		Message:    "Hypotheses fetched",
		Hypotheses: hyps,
	})
}
