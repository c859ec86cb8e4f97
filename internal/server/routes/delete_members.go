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

// RemoveProjectMemberHandler removes a collaborator. Members may always
// remove themselves; removing others needs write access.
func RemoveProjectMemberHandler(c echo.Context) error {
	type removeMemberBody struct {
		ID     int64 `param:"id" validate:"required,min=1"`
		UserID int64 `json:"user_id" query:"user_id" validate:"required,min=1"`
	}

	data := new(removeMemberBody)
	if err := c.Bind(data); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(data); err != nil {
		return invalidParams(c)
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	ctx := c.Request().Context()
	q := pgdb.New(c.(*middleware.AppContext).App.DBConn)

	write := data.UserID != user.UserID
	if err := middleware.CheckProjectAccess(ctx, q, user, data.ID, write); err != nil {
		return accessDenied(c, err)
	}

	project, err := q.GetProjectByID(ctx, data.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Project not found"})
	}
	if err != nil {
		logger.Error("Failed to load project", "project_id", data.ID, "err", err)
		return internalError(c)
	}
	if project.OwnerID == data.UserID {
		return c.JSON(http.StatusBadRequest, messageResponse{
			Message: "The project owner cannot be removed",
		})
	}

	n, err := q.RemoveProjectMember(ctx, pgdb.RemoveProjectMemberParams{
		ProjectID: data.ID,
		UserID:    data.UserID,
	})
	if err != nil {
		logger.Error("Failed to remove member", "project_id", data.ID, "user_id", data.UserID, "err", err)
		return internalError(c)
	}
	if n == 0 {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Member not found"})
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Member removed"})
}
