package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// EditHypothesisHandler changes the wording or the linked question of a
// hypothesis. Status and confidence are derived from evidence and cannot be
// set here.
func EditHypothesisHandler(c echo.Context) error {
	type editHypothesisBody struct {
		ID            int64   `param:"id" validate:"required,min=1"`
		Text          *string `json:"text" validate:"omitempty,min=1,max=2000"`
		QuestionID    *int64  `json:"question_id" validate:"omitempty,min=1"`
		ClearQuestion bool    `json:"clear_question"`
	}

	type editHypothesisResponse struct {
		Message    string           `json:"message"`
		Hypothesis *pgdb.Hypothesis `json:"hypothesis,omitempty"`
	}

	data := new(editHypothesisBody)
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

	current, ok, err := hypothesisForUser(c, q, user, data.ID, true)
	if !ok {
		return err
	}

	params := pgdb.UpdateHypothesisTextParams{
		ID:         current.ID,
		Text:       current.Text,
		QuestionID: current.QuestionID,
	}
	if data.Text != nil {
		params.Text = *data.Text
	}
	switch {
	case data.ClearQuestion:
		params.QuestionID = optionalID(nil)
	case data.QuestionID != nil:
		inProject, err := questionInProject(ctx, q, current.ProjectID, *data.QuestionID)
		if err != nil {
			logger.Error("Failed to check question", "project_id", current.ProjectID, "err", err)
			return internalError(c)
		}
		if !inProject {
			return c.JSON(http.StatusBadRequest, editHypothesisResponse{
				Message: "Question does not belong to this project",
			})
		}
		params.QuestionID = optionalID(data.QuestionID)
	}

	hyp, err := q.UpdateHypothesisText(ctx, params)
	if err != nil {
		logger.Error("Failed to update hypothesis", "hypothesis_id", data.ID, "err", err)
		return internalError(c)
	}
	if err := app.Cache.InvalidateProject(ctx, hyp.ProjectID); err != nil {
		logger.Warn("Failed to invalidate project cache", "project_id", hyp.ProjectID, "err", err)
	}

	return c.JSON(http.StatusOK, editHypothesisResponse{
		Message:    "Hypothesis updated",
		Hypothesis: &hyp,
	})
}
