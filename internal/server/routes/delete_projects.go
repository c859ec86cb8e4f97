package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// DeleteProjectHandler deletes a project and everything scoped to it. Only
// the owner may do this.
func DeleteProjectHandler(c echo.Context) error {
	type deleteProjectParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	params := new(deleteProjectParams)
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

	role, err := middleware.ProjectRole(ctx, q, user, params.ID)
	if err != nil {
		return accessDenied(c, err)
	}
	if role != common.RoleOwner {
		return c.JSON(http.StatusForbidden, messageResponse{
			Message: "Only the project owner can delete it",
		})
	}

	n, err := q.DeleteProject(ctx, params.ID)
	if err != nil {
		logger.Error("Failed to delete project", "project_id", params.ID, "err", err)
		return internalError(c)
	}
	if n == 0 {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Project not found"})
	}

	if err := app.Cache.InvalidateProject(ctx, params.ID); err != nil {
		logger.Warn("Failed to invalidate project cache", "project_id", params.ID, "err", err)
	}

	return c.JSON(http.StatusOK, messageResponse{
		Message: "Project deleted",
	})
}
