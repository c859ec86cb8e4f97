package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

const defaultNotificationLimit = 50

func GetNotificationsHandler(c echo.Context) error {
	type getNotificationsParams struct {
		Unread bool  `query:"unread"`
		Limit  int32 `query:"limit" validate:"omitempty,min=1,max=200"`
	}

	type getNotificationsResponse struct {
		Message       string              `json:"message"`
		Notifications []pgdb.Notification `json:"notifications"`
	}

	params := new(getNotificationsParams)
	if err := c.Bind(params); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(params); err != nil {
		return invalidParams(c)
	}
	if params.Limit == 0 {
		params.Limit = defaultNotificationLimit
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	ctx := c.Request().Context()
	notifications, err := pgdb.New(c.(*middleware.AppContext).App.DBConn).ListNotificationsForUser(ctx, pgdb.ListNotificationsForUserParams{
		UserID:     user.UserID,
		UnreadOnly: params.Unread,
		Limit:      params.Limit,
	})
	if err != nil {
		logger.Error("Failed to list notifications", "user_id", user.UserID, "err", err)
		return internalError(c)
	}
	if notifications == nil {
		notifications = []pgdb.Notification{}
	}

	return c.JSON(http.StatusOK, getNotificationsResponse{
		Message:       "Notifications fetched",
		Notifications: notifications,
	})
}

func MarkNotificationReadHandler(c echo.Context) error {
	type markReadParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	params := new(markReadParams)
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
	n, err := pgdb.New(c.(*middleware.AppContext).App.DBConn).MarkNotificationRead(ctx, pgdb.MarkNotificationReadParams{
		ID:     params.ID,
		UserID: user.UserID,
	})
	if err != nil {
		logger.Error("Failed to mark notification read", "notification_id", params.ID, "err", err)
		return internalError(c)
	}
	if n == 0 {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Notification not found or already read"})
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Notification marked as read"})
}
