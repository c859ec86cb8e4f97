package routes

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/queue"
	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/leaselock"
	"github.com/rd-agent/backend/pkg/logger"
)

func GetSummaryHandler(c echo.Context) error {
	type getSummaryParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	type getSummaryResponse struct {
		Message    string               `json:"message"`
		Summary    *pgdb.ProjectSummary `json:"summary,omitempty"`
		Generating bool                 `json:"generating"`
	}

	params := new(getSummaryParams)
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
	if err := middleware.CheckProjectAccess(ctx, q, user, params.ID, false); err != nil {
		return accessDenied(c, err)
	}

	// A held summary lease means the worker is writing a new one.
	_, generating, err := app.Locks.Holder(ctx, leaselock.SummaryKey(params.ID))
	if err != nil {
		logger.Warn("Failed to check summary lease", "project_id", params.ID, "err", err)
	}

	summary, err := q.GetProjectSummary(ctx, params.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, getSummaryResponse{
			Message:    "No summary generated yet",
			Generating: generating,
		})
	}
	if err != nil {
		logger.Error("Failed to load summary", "project_id", params.ID, "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusOK, getSummaryResponse{
		Message:    "Summary fetched",
		Summary:    &summary,
		Generating: generating,
	})
}

// RegenerateSummaryHandler queues a new AI summary of the project.
func RegenerateSummaryHandler(c echo.Context) error {
	type regenerateSummaryParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	params := new(regenerateSummaryParams)
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
	if err := middleware.CheckProjectAccess(ctx, q, user, params.ID, true); err != nil {
		return accessDenied(c, err)
	}

	err := queue.EnqueueSummary(ctx, app.Queue, queue.SummaryMsg{
		ProjectID:   params.ID,
		RequestedBy: user.UserID,
	})
	if err != nil {
		logger.Error("Failed to enqueue summary", "project_id", params.ID, "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusAccepted, messageResponse{Message: "Summary generation queued"})
}
