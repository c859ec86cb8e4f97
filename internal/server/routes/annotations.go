package routes

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

func GetAnnotationsHandler(c echo.Context) error {
	type getAnnotationsParams struct {
		ID   int64  `param:"id" validate:"required,min=1"`
		Pmid string `query:"pmid" validate:"omitempty,numeric,max=12"`
	}

	type getAnnotationsResponse struct {
		Message     string            `json:"message"`
		Annotations []pgdb.Annotation `json:"annotations"`
	}

	params := new(getAnnotationsParams)
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

	annotations, err := q.ListAnnotationsByProject(ctx, pgdb.ListAnnotationsByProjectParams{
		ProjectID:   params.ID,
		ArticlePmid: pgtype.Text{String: params.Pmid, Valid: params.Pmid != ""},
	})
	if err != nil {
		logger.Error("Failed to list annotations", "project_id", params.ID, "err", err)
		return internalError(c)
	}
	if annotations == nil {
		annotations = []pgdb.Annotation{}
	}

	return c.JSON(http.StatusOK, getAnnotationsResponse{
		Message:     "Annotations fetched",
		Annotations: annotations,
	})
}

// CreateAnnotationHandler stores a note on a project paper. Viewers may
// annotate too.
func CreateAnnotationHandler(c echo.Context) error {
	type createAnnotationBody struct {
		ID       int64  `param:"id" validate:"required,min=1"`
		Pmid     string `json:"pmid" validate:"required,numeric,max=12"`
		Content  string `json:"content" validate:"required,max=10000"`
		NoteType string `json:"note_type" validate:"omitempty,oneof=general finding question critique methodology"`
	}

	type createAnnotationResponse struct {
		Message    string           `json:"message"`
		Annotation *pgdb.Annotation `json:"annotation,omitempty"`
	}

	data := new(createAnnotationBody)
	if err := c.Bind(data); err != nil {
		return invalidBody(c)
	}
	if err := c.Validate(data); err != nil {
		return invalidBody(c)
	}
	if data.NoteType == "" {
		data.NoteType = "general"
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	ctx := c.Request().Context()
	q := pgdb.New(c.(*middleware.AppContext).App.DBConn)
	if err := middleware.CheckProjectAccess(ctx, q, user, data.ID, false); err != nil {
		return accessDenied(c, err)
	}

	inProject, err := q.IsArticleInProject(ctx, pgdb.IsArticleInProjectParams{
		ProjectID:   data.ID,
		ArticlePmid: data.Pmid,
	})
	if err != nil {
		logger.Error("Failed to check paper", "project_id", data.ID, "pmid", data.Pmid, "err", err)
		return internalError(c)
	}
	if !inProject {
		return c.JSON(http.StatusBadRequest, createAnnotationResponse{
			Message: "Paper is not part of this project",
		})
	}

	annotation, err := q.CreateAnnotation(ctx, pgdb.CreateAnnotationParams{
		ProjectID:   data.ID,
		ArticlePmid: data.Pmid,
		UserID:      user.UserID,
		Content:     data.Content,
		NoteType:    data.NoteType,
	})
	if err != nil {
		logger.Error("Failed to create annotation", "project_id", data.ID, "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusCreated, createAnnotationResponse{
		Message:    "Annotation created",
		Annotation: &annotation,
	})
}

// DeleteAnnotationHandler deletes a note. Authors may delete their own
// notes; the project owner may delete any.
func DeleteAnnotationHandler(c echo.Context) error {
	type deleteAnnotationParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	params := new(deleteAnnotationParams)
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

	annotation, err := q.GetAnnotation(ctx, params.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Annotation not found"})
	}
	if err != nil {
		logger.Error("Failed to load annotation", "annotation_id", params.ID, "err", err)
		return internalError(c)
	}

	role, err := middleware.ProjectRole(ctx, q, user, annotation.ProjectID)
	if err != nil {
		return accessDenied(c, err)
	}
	if annotation.UserID != user.UserID && role != common.RoleOwner {
		return c.JSON(http.StatusForbidden, messageResponse{
			Message: "Only the author or the project owner can delete this annotation",
		})
	}

	if _, err := q.DeleteAnnotation(ctx, annotation.ID); err != nil {
		logger.Error("Failed to delete annotation", "annotation_id", annotation.ID, "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Annotation deleted"})
}
