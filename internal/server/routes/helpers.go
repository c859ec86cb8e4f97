package routes

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

type messageResponse struct {
	Message string `json:"message"`
}

// accessDenied answers a failed project access check. Unexpected lookup
// errors are logged and reported as 500.
func accessDenied(c echo.Context, err error) error {
	switch {
	case errors.Is(err, middleware.ErrNoProjectAccess):
		return c.JSON(http.StatusForbidden, messageResponse{
			Message: "You are not a member of this project",
		})
	case errors.Is(err, middleware.ErrReadOnly):
		return c.JSON(http.StatusForbidden, messageResponse{
			Message: "You have read-only access to this project",
		})
	}
	logger.Error("Failed to check project access", "err", err)
	return internalError(c)
}

func internalError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, messageResponse{
		Message: "Internal server error",
	})
}

func invalidParams(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, messageResponse{
		Message: "Invalid request params",
	})
}

func invalidBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, messageResponse{
		Message: "Invalid request body",
	})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
}

func userRef(user *middleware.AppUser) pgtype.Int8 {
	return pgtype.Int8{Int64: user.UserID, Valid: true}
}

func optionalID(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

// hypothesisForUser loads a hypothesis and checks the caller's access to
// its project. When ok is false the response has already been written and
// err is what the handler should return.
func hypothesisForUser(c echo.Context, q *pgdb.Queries, user *middleware.AppUser, id int64, write bool) (hyp pgdb.Hypothesis, ok bool, err error) {
	ctx := c.Request().Context()
	hyp, err = q.GetHypothesis(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return hyp, false, c.JSON(http.StatusNotFound, messageResponse{Message: "Hypothesis not found"})
	}
	if err != nil {
		logger.Error("Failed to load hypothesis", "hypothesis_id", id, "err", err)
		return hyp, false, internalError(c)
	}
	if err := middleware.CheckProjectAccess(ctx, q, user, hyp.ProjectID, write); err != nil {
		return hyp, false, accessDenied(c, err)
	}
	return hyp, true, nil
}

// collectionForUser is hypothesisForUser for collections.
func collectionForUser(c echo.Context, q *pgdb.Queries, user *middleware.AppUser, id int64, write bool) (col pgdb.Collection, ok bool, err error) {
	ctx := c.Request().Context()
	col, err = q.GetCollection(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return col, false, c.JSON(http.StatusNotFound, messageResponse{Message: "Collection not found"})
	}
	if err != nil {
		logger.Error("Failed to load collection", "collection_id", id, "err", err)
		return col, false, internalError(c)
	}
	if err := middleware.CheckProjectAccess(ctx, q, user, col.ProjectID, write); err != nil {
		return col, false, accessDenied(c, err)
	}
	return col, true, nil
}
