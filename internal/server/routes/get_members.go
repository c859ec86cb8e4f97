package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

func GetProjectMembersHandler(c echo.Context) error {
	type getMembersParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	type getMembersResponse struct {
		Message string                       `json:"message"`
		Members []pgdb.ListProjectMembersRow `json:"members"`
	}

	params := new(getMembersParams)
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

	members, err := q.ListProjectMembers(ctx, params.ID)
	if err != nil {
		logger.Error("Failed to list members", "project_id", params.ID, "err", err)
		return internalError(c)
	}
	if members == nil {
		members = []pgdb.ListProjectMembersRow{}
	}

	return c.JSON(http.StatusOK, getMembersResponse{
		Message: "Members fetched",
		Members: members,
	})
}
