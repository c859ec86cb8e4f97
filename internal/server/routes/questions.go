package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

func GetQuestionsHandler(c echo.Context) error {
	type getQuestionsParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	type getQuestionsResponse struct {
		Message   string                  `json:"message"`
		Questions []pgdb.ResearchQuestion `json:"questions"`
	}

	params := new(getQuestionsParams)
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

	questions, err := q.ListQuestionsByProject(ctx, params.ID)
	if err != nil {
		logger.Error("Failed to list questions", "project_id", params.ID, "err", err)
		return internalError(c)
	}
	if questions == nil {
		questions = []pgdb.ResearchQuestion{}
	}

	return c.JSON(http.StatusOK, getQuestionsResponse{
		Message:   "Questions fetched",
		Questions: questions,
	})
}

func CreateQuestionHandler(c echo.Context) error {
	type createQuestionBody struct {
		ID   int64  `param:"id" validate:"required,min=1"`
		Text string `json:"text" validate:"required,max=2000"`
	}

	type createQuestionResponse struct {
		Message  string                 `json:"message"`
		Question *pgdb.ResearchQuestion `json:"question,omitempty"`
	}

	data := new(createQuestionBody)
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

	question, err := q.CreateQuestion(ctx, pgdb.CreateQuestionParams{
		ProjectID: data.ID,
		Text:      data.Text,
	})
	if err != nil {
		logger.Error("Failed to create question", "project_id", data.ID, "err", err)
		return internalError(c)
	}
	if err := app.Cache.InvalidateProject(ctx, data.ID); err != nil {
		logger.Warn("Failed to invalidate project cache", "project_id", data.ID, "err", err)
	}

	return c.JSON(http.StatusCreated, createQuestionResponse{
		Message:  "Question created",
		Question: &question,
	})
}
