package routes

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// EditProjectHandler renames a project or changes its description. Fields
// left out of the body keep their value.
func EditProjectHandler(c echo.Context) error {
	type editProjectBody struct {
		ID          int64   `param:"id" validate:"required,min=1"`
		Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
		Description *string `json:"description" validate:"omitempty,max=5000"`
	}

	type editProjectResponse struct {
		Message string        `json:"message"`
		Project *pgdb.Project `json:"project,omitempty"`
	}

	data := new(editProjectBody)
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

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	tx, err := conn.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin transaction", "err", err)
		return internalError(c)
	}
	defer tx.Rollback(ctx)
	qtx := pgdb.New(conn).WithTx(tx)

	if err := middleware.CheckProjectAccess(ctx, qtx, user, data.ID, true); err != nil {
		return accessDenied(c, err)
	}

	current, err := qtx.GetProjectByID(ctx, data.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, editProjectResponse{Message: "Project not found"})
	}
	if err != nil {
		logger.Error("Failed to load project", "project_id", data.ID, "err", err)
		return internalError(c)
	}

	params := pgdb.UpdateProjectParams{
		ID:          current.ID,
		Name:        current.Name,
		Description: current.Description,
	}
	if data.Name != nil {
		params.Name = *data.Name
	}
	if data.Description != nil {
		params.Description = *data.Description
	}

	project, err := qtx.UpdateProject(ctx, params)
	if err != nil {
		logger.Error("Failed to update project", "project_id", data.ID, "err", err)
		return internalError(c)
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Failed to commit transaction", "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusOK, editProjectResponse{
		Message: "Project updated",
		Project: &project,
	})
}
