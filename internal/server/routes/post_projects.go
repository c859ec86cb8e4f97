package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// CreateProjectHandler creates a project owned by the caller.
func CreateProjectHandler(c echo.Context) error {
	type createProjectBody struct {
		Name        string `json:"name" validate:"required,max=200"`
		Description string `json:"description" validate:"max=5000"`
	}

	type createProjectResponse struct {
		Message string        `json:"message"`
		Project *pgdb.Project `json:"project,omitempty"`
	}

	data := new(createProjectBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createProjectResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createProjectResponse{
			Message: "Invalid request body",
		})
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
		return c.JSON(http.StatusInternalServerError, createProjectResponse{
			Message: "Internal server error",
		})
	}
	defer tx.Rollback(ctx)
	q := pgdb.New(conn)
	qtx := q.WithTx(tx)

	project, err := qtx.CreateProject(ctx, pgdb.CreateProjectParams{
		Name:        data.Name,
		Description: data.Description,
		OwnerID:     user.UserID,
	})
	if err != nil {
		logger.Error("Failed to create project", "err", err)
		return c.JSON(http.StatusInternalServerError, createProjectResponse{
			Message: "Internal server error",
		})
	}

	_, err = qtx.AddProjectMember(ctx, pgdb.AddProjectMemberParams{
		ProjectID: project.ID,
		UserID:    user.UserID,
		Role:      string(common.RoleOwner),
	})
	if err != nil {
		logger.Error("Failed to add project owner", "project_id", project.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, createProjectResponse{
			Message: "Internal server error",
		})
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Failed to commit transaction", "err", err)
		return c.JSON(http.StatusInternalServerError, createProjectResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusCreated, createProjectResponse{
		Message: "Project created",
		Project: &project,
	})
}
