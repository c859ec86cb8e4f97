package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// GetTriageHandler lists a project's triage rows, optionally only those
// with the given status.
func GetTriageHandler(c echo.Context) error {
	type getTriageParams struct {
		ID     int64  `param:"id" validate:"required,min=1"`
		Status string `query:"status"`
	}

	type getTriageResponse struct {
		Message string             `json:"message"`
		Triage  []pgdb.PaperTriage `json:"triage"`
	}

	params := new(getTriageParams)
	if err := c.Bind(params); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(params); err != nil {
		return invalidParams(c)
	}

	var status common.TriageStatus
	if params.Status != "" {
		parsed, ok := common.ParseTriageStatus(params.Status)
		if !ok {
			return invalidParams(c)
		}
		status = parsed
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

	var (
		rows []pgdb.PaperTriage
		err  error
	)
	if status != "" {
		rows, err = q.ListTriageByStatus(ctx, pgdb.ListTriageByStatusParams{
			ProjectID:    params.ID,
			TriageStatus: string(status),
		})
	} else {
		rows, err = q.ListTriageByProject(ctx, params.ID)
	}
	if err != nil {
		logger.Error("Failed to list triage", "project_id", params.ID, "err", err)
		return internalError(c)
	}
	if rows == nil {
		rows = []pgdb.PaperTriage{}
	}

	return c.JSON(http.StatusOK, getTriageResponse{
		Message: "Triage fetched",
		Triage:  rows,
	})
}
