package routes

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/queue"
	"github.com/rd-agent/backend/internal/server/middleware"
	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// AddProjectMemberHandler adds a collaborator or changes their role and
// notifies them.
func AddProjectMemberHandler(c echo.Context) error {
	type addMemberBody struct {
		ID     int64  `param:"id" validate:"required,min=1"`
		UserID int64  `json:"user_id" validate:"required,min=1"`
		Email  string `json:"email" validate:"omitempty,email"`
		Name   string `json:"name" validate:"max=200"`
		Role   string `json:"role" validate:"required,oneof=editor viewer"`
	}

	type addMemberResponse struct {
		Message string              `json:"message"`
		Member  *pgdb.ProjectMember `json:"member,omitempty"`
	}

	data := new(addMemberBody)
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

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	tx, err := app.DBConn.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin transaction", "err", err)
		return internalError(c)
	}
	defer tx.Rollback(ctx)
	qtx := pgdb.New(app.DBConn).WithTx(tx)

	if err := middleware.CheckProjectAccess(ctx, qtx, user, data.ID, true); err != nil {
		return accessDenied(c, err)
	}

	project, err := qtx.GetProjectByID(ctx, data.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Project not found"})
	}
	if err != nil {
		logger.Error("Failed to load project", "project_id", data.ID, "err", err)
		return internalError(c)
	}
	if project.OwnerID == data.UserID {
		return c.JSON(http.StatusBadRequest, messageResponse{
			Message: "The project owner's role cannot be changed",
		})
	}

	if _, err := qtx.UpsertUser(ctx, pgdb.UpsertUserParams{
		ID:    data.UserID,
		Email: data.Email,
		Name:  data.Name,
	}); err != nil {
		logger.Error("Failed to upsert user", "user_id", data.UserID, "err", err)
		return internalError(c)
	}

	member, err := qtx.AddProjectMember(ctx, pgdb.AddProjectMemberParams{
		ProjectID: data.ID,
		UserID:    data.UserID,
		Role:      data.Role,
	})
	if err != nil {
		logger.Error("Failed to add member", "project_id", data.ID, "user_id", data.UserID, "err", err)
		return internalError(c)
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Failed to commit transaction", "err", err)
		return internalError(c)
	}

	err = queue.EnqueueNotify(ctx, app.Queue, queue.NotifyMsg{
		Kind:      common.NotifyMemberAdded,
		ProjectID: data.ID,
		ActorID:   user.UserID,
		UserIDs:   []int64{data.UserID},
		Payload:   queue.NotifyPayload{Role: data.Role},
	})
	if err != nil {
		logger.Warn("Failed to enqueue member notification", "project_id", data.ID, "err", err)
	}

	return c.JSON(http.StatusOK, addMemberResponse{
		Message: "Member added",
		Member:  &member,
	})
}
