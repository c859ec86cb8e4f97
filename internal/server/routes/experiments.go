package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

func GetExperimentsHandler(c echo.Context) error {
	type getExperimentsParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	type getExperimentsResponse struct {
		Message     string                  `json:"message"`
		Experiments []pgdb.ExperimentResult `json:"experiments"`
	}

	params := new(getExperimentsParams)
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

	experiments, err := q.ListExperimentResultsByProject(ctx, params.ID)
	if err != nil {
		logger.Error("Failed to list experiments", "project_id", params.ID, "err", err)
		return internalError(c)
	}
	if experiments == nil {
		experiments = []pgdb.ExperimentResult{}
	}

	return c.JSON(http.StatusOK, getExperimentsResponse{
		Message:     "Experiments fetched",
		Experiments: experiments,
	})
}

func CreateExperimentHandler(c echo.Context) error {
	type createExperimentBody struct {
		ID           int64  `param:"id" validate:"required,min=1"`
		HypothesisID *int64 `json:"hypothesis_id" validate:"omitempty,min=1"`
		Title        string `json:"title" validate:"required,max=300"`
		Outcome      string `json:"outcome" validate:"omitempty,oneof=pending confirmed refuted inconclusive"`
		Notes        string `json:"notes" validate:"max=10000"`
	}

	type createExperimentResponse struct {
		Message    string                 `json:"message"`
		Experiment *pgdb.ExperimentResult `json:"experiment,omitempty"`
	}

	data := new(createExperimentBody)
	if err := c.Bind(data); err != nil {
		return invalidBody(c)
	}
	if err := c.Validate(data); err != nil {
		return invalidBody(c)
	}
	if data.Outcome == "" {
		data.Outcome = "pending"
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

	if data.HypothesisID != nil {
		ok, err := hypothesisInProject(ctx, q, data.ID, *data.HypothesisID)
		if err != nil {
			logger.Error("Failed to check hypothesis", "project_id", data.ID, "err", err)
			return internalError(c)
		}
		if !ok {
			return c.JSON(http.StatusBadRequest, createExperimentResponse{
				Message: "Hypothesis does not belong to this project",
			})
		}
	}

	experiment, err := q.CreateExperimentResult(ctx, pgdb.CreateExperimentResultParams{
		ProjectID:    data.ID,
		HypothesisID: optionalID(data.HypothesisID),
		Title:        data.Title,
		Outcome:      data.Outcome,
		Notes:        data.Notes,
		CreatedBy:    user.UserID,
	})
	if err != nil {
		logger.Error("Failed to create experiment", "project_id", data.ID, "err", err)
		return internalError(c)
	}
	if err := app.Cache.InvalidateProject(ctx, data.ID); err != nil {
		logger.Warn("Failed to invalidate project cache", "project_id", data.ID, "err", err)
	}

	return c.JSON(http.StatusCreated, createExperimentResponse{
		Message:    "Experiment created",
		Experiment: &experiment,
	})
}

func EditExperimentHandler(c echo.Context) error {
	type editExperimentBody struct {
		ID      int64   `param:"id" validate:"required,min=1"`
		Title   *string `json:"title" validate:"omitempty,min=1,max=300"`
		Outcome *string `json:"outcome" validate:"omitempty,oneof=pending confirmed refuted inconclusive"`
		Notes   *string `json:"notes" validate:"omitempty,max=10000"`
	}

	type editExperimentResponse struct {
		Message    string                 `json:"message"`
		Experiment *pgdb.ExperimentResult `json:"experiment,omitempty"`
	}

	data := new(editExperimentBody)
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

	current, err := q.GetExperimentResult(ctx, data.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, editExperimentResponse{Message: "Experiment not found"})
	}
	if err != nil {
		logger.Error("Failed to load experiment", "experiment_id", data.ID, "err", err)
		return internalError(c)
	}
	if err := middleware.CheckProjectAccess(ctx, q, user, current.ProjectID, true); err != nil {
		return accessDenied(c, err)
	}

	params := pgdb.UpdateExperimentResultParams{
		ID:      current.ID,
		Title:   current.Title,
		Outcome: current.Outcome,
		Notes:   current.Notes,
	}
	if data.Title != nil {
		params.Title = *data.Title
	}
	if data.Outcome != nil {
		params.Outcome = *data.Outcome
	}
	if data.Notes != nil {
		params.Notes = *data.Notes
	}

	experiment, err := q.UpdateExperimentResult(ctx, params)
	if err != nil {
		logger.Error("Failed to update experiment", "experiment_id", data.ID, "err", err)
		return internalError(c)
	}
	if err := app.Cache.InvalidateProject(ctx, experiment.ProjectID); err != nil {
		logger.Warn("Failed to invalidate project cache", "project_id", experiment.ProjectID, "err", err)
	}

	return c.JSON(http.StatusOK, editExperimentResponse{
		Message:    "Experiment updated",
		Experiment: &experiment,
	})
}

func hypothesisInProject(ctx context.Context, q *pgdb.Queries, projectID, hypothesisID int64) (bool, error) {
	hyp, err := q.GetHypothesis(ctx, hypothesisID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return hyp.ProjectID == projectID, nil
}
