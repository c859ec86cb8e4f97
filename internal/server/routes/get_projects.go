package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// GetProjectsHandler lists the projects the caller is a member of. Users
// holding project.view:all see every project.
func GetProjectsHandler(c echo.Context) error {
	type getProjectsResponse struct {
		Message  string         `json:"message"`
		Projects []pgdb.Project `json:"projects"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	ctx := c.Request().Context()
	q := pgdb.New(c.(*middleware.AppContext).App.DBConn)

	var (
		projects []pgdb.Project
		err      error
	)
	if middleware.HasPermission(user, "project.view:all") {
		projects, err = q.ListAllProjects(ctx)
	} else {
		projects, err = q.ListProjectsForUser(ctx, user.UserID)
	}
	if err != nil {
		logger.Error("Failed to list projects", "user_id", user.UserID, "err", err)
		return internalError(c)
	}
	if projects == nil {
		projects = []pgdb.Project{}
	}

	return c.JSON(http.StatusOK, getProjectsResponse{
		Message:  "Projects fetched",
		Projects: projects,
	})
}
