package routes

import (
	"context"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// CreateHypothesisHandler adds a hypothesis in status proposed.
func CreateHypothesisHandler(c echo.Context) error {
	type createHypothesisBody struct {
		ID         int64  `param:"id" validate:"required,min=1"`
		Text       string `json:"text" validate:"required,max=2000"`
		QuestionID *int64 `json:"question_id" validate:"omitempty,min=1"`
	}

	type createHypothesisResponse struct {
		Message    string           `json:"message"`
		Hypothesis *pgdb.Hypothesis `json:"hypothesis,omitempty"`
	}

	data := new(createHypothesisBody)
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
	q := pgdb.New(app.DBConn)
	if err := middleware.CheckProjectAccess(ctx, q, user, data.ID, true); err != nil {
		return accessDenied(c, err)
	}

	if data.QuestionID != nil {
		ok, err := questionInProject(ctx, q, data.ID, *data.QuestionID)
		if err != nil {
			logger.Error("Failed to check question", "project_id", data.ID, "err", err)
			return internalError(c)
		}
		if !ok {
			return c.JSON(http.StatusBadRequest, createHypothesisResponse{
				Message: "Question does not belong to this project",
			})
		}
	}

	hyp, err := q.CreateHypothesis(ctx, pgdb.CreateHypothesisParams{
		ProjectID:  data.ID,
		QuestionID: optionalID(data.QuestionID),
		Text:       data.Text,
		CreatedBy:  userRef(user),
	})
	if err != nil {
		logger.Error("Failed to create hypothesis", "project_id", data.ID, "err", err)
		return internalError(c)
	}
	if err := app.Cache.InvalidateProject(ctx, data.ID); err != nil {
		logger.Warn("Failed to invalidate project cache", "project_id", data.ID, "err", err)
	}

	return c.JSON(http.StatusCreated, createHypothesisResponse{
		Message:    "Hypothesis created",
		Hypothesis: &hyp,
	})
}

func questionInProject(ctx context.Context, q *pgdb.Queries, projectID, questionID int64) (bool, error) {
	questions, err := q.ListQuestionsByProject(ctx, projectID)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(questions, func(rq pgdb.ResearchQuestion) bool {
		return rq.ID == questionID
	}), nil
}
