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

const defaultRelatedLimit = 10

// GetProjectPapersHandler lists the articles added to a project, newest first.
func GetProjectPapersHandler(c echo.Context) error {
	type getPapersParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	type getPapersResponse struct {
		Message string         `json:"message"`
		Papers  []pgdb.Article `json:"papers"`
	}

	params := new(getPapersParams)
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

	papers, err := q.ListProjectArticles(ctx, params.ID)
	if err != nil {
		logger.Error("Failed to list papers", "project_id", params.ID, "err", err)
		return internalError(c)
	}
	if papers == nil {
		papers = []pgdb.Article{}
	}

	return c.JSON(http.StatusOK, getPapersResponse{
		Message: "Papers fetched",
		Papers:  papers,
	})
}

// GetPaperHandler returns the stored metadata of one article.
func GetPaperHandler(c echo.Context) error {
	type getPaperParams struct {
		Pmid string `param:"pmid" validate:"required,numeric,max=12"`
	}

	type getPaperResponse struct {
		Message string        `json:"message"`
		Paper   *pgdb.Article `json:"paper,omitempty"`
	}

	params := new(getPaperParams)
	if err := c.Bind(params); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(params); err != nil {
		return invalidParams(c)
	}

	if c.(*middleware.AppContext).User == nil {
		return unauthorized(c)
	}

	ctx := c.Request().Context()
	article, err := pgdb.New(c.(*middleware.AppContext).App.DBConn).GetArticle(ctx, params.Pmid)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, getPaperResponse{Message: "Paper not found"})
	}
	if err != nil {
		logger.Error("Failed to load paper", "pmid", params.Pmid, "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusOK, getPaperResponse{
		Message: "Paper fetched",
		Paper:   &article,
	})
}

// GetPaperPDFHandler returns a short-lived download link for a stored PDF.
func GetPaperPDFHandler(c echo.Context) error {
	type getPDFParams struct {
		Pmid string `param:"pmid" validate:"required,numeric,max=12"`
	}

	type getPDFResponse struct {
		Message string `json:"message"`
		URL     string `json:"url,omitempty"`
	}

	params := new(getPDFParams)
	if err := c.Bind(params); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(params); err != nil {
		return invalidParams(c)
	}

	if c.(*middleware.AppContext).User == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	article, err := pgdb.New(app.DBConn).GetArticle(ctx, params.Pmid)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, getPDFResponse{Message: "Paper not found"})
	}
	if err != nil {
		logger.Error("Failed to load paper", "pmid", params.Pmid, "err", err)
		return internalError(c)
	}
	if !article.PdfKey.Valid || app.Storage == nil {
		return c.JSON(http.StatusNotFound, getPDFResponse{Message: "No PDF stored for this paper"})
	}

	link, err := app.Storage.DownloadLink(ctx, article.PdfKey.String)
	if err != nil {
		logger.Error("Failed to presign PDF", "pmid", params.Pmid, "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusOK, getPDFResponse{
		Message: "PDF link created",
		URL:     link,
	})
}

// GetRelatedPapersHandler lists the project's articles closest to one
// article by embedding distance.
func GetRelatedPapersHandler(c echo.Context) error {
	type getRelatedParams struct {
		ID    int64  `param:"id" validate:"required,min=1"`
		Pmid  string `param:"pmid" validate:"required,numeric,max=12"`
		Limit int32  `query:"limit" validate:"omitempty,min=1,max=50"`
	}

	type getRelatedResponse struct {
		Message string                        `json:"message"`
		Papers  []pgdb.ListRelatedArticlesRow `json:"papers"`
	}

	params := new(getRelatedParams)
	if err := c.Bind(params); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(params); err != nil {
		return invalidParams(c)
	}
	if params.Limit == 0 {
		params.Limit = defaultRelatedLimit
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

	papers, err := q.ListRelatedArticles(ctx, pgdb.ListRelatedArticlesParams{
		Pmid:      params.Pmid,
		ProjectID: params.ID,
		Limit:     params.Limit,
	})
	if err != nil {
		logger.Error("Failed to list related papers", "project_id", params.ID, "pmid", params.Pmid, "err", err)
		return internalError(c)
	}
	if papers == nil {
		papers = []pgdb.ListRelatedArticlesRow{}
	}

	return c.JSON(http.StatusOK, getRelatedResponse{
		Message: "Related papers fetched",
		Papers:  papers,
	})
}
