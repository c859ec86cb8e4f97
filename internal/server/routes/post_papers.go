package routes

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/pubmed"
	"github.com/rd-agent/backend/internal/queue"
	"github.com/rd-agent/backend/internal/server/middleware"
	"github.com/rd-agent/backend/internal/util"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// AddPaperHandler adds an article to a project. When the body carries only a
// PMID the metadata is fetched from PubMed.
func AddPaperHandler(c echo.Context) error {
	type addPaperBody struct {
		ID       int64  `param:"id" validate:"required,min=1"`
		Pmid     string `json:"pmid" validate:"required,numeric,max=12"`
		Title    string `json:"title" validate:"max=2000"`
		Abstract string `json:"abstract"`
		Journal  string `json:"journal" validate:"max=500"`
		PubYear  int32  `json:"pub_year" validate:"omitempty,min=1800,max=2200"`
		Doi      string `json:"doi" validate:"max=255"`
		Triage   bool   `json:"triage"`
	}

	type addPaperResponse struct {
		Message string        `json:"message"`
		Paper   *pgdb.Article `json:"paper,omitempty"`
		Added   bool          `json:"added"`
	}

	data := new(addPaperBody)
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

	params := pgdb.UpsertArticleParams{
		Pmid:     data.Pmid,
		Title:    util.SanitizePostgresText(data.Title),
		Abstract: util.SanitizePostgresText(data.Abstract),
		Journal:  util.SanitizePostgresText(data.Journal),
		Doi:      data.Doi,
	}
	if data.PubYear != 0 {
		params.PubYear = pgtype.Int4{Int32: data.PubYear, Valid: true}
	}

	if params.Title == "" {
		if _, err := q.GetArticle(ctx, data.Pmid); errors.Is(err, pgx.ErrNoRows) {
			fetched, err := app.PubMed.Fetch(ctx, data.Pmid)
			if errors.Is(err, pubmed.ErrNotFound) {
				return c.JSON(http.StatusNotFound, addPaperResponse{Message: "PMID not found on PubMed"})
			}
			if err != nil {
				logger.Error("Failed to fetch PubMed record", "pmid", data.Pmid, "err", err)
				return c.JSON(http.StatusBadGateway, addPaperResponse{Message: "PubMed is unavailable"})
			}
			params = articleParamsFromPubMed(fetched)
		} else if err != nil {
			logger.Error("Failed to load paper", "pmid", data.Pmid, "err", err)
			return internalError(c)
		}
	}

	tx, err := app.DBConn.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin transaction", "err", err)
		return internalError(c)
	}
	defer tx.Rollback(ctx)
	qtx := q.WithTx(tx)

	article, err := qtx.UpsertArticle(ctx, params)
	if err != nil {
		logger.Error("Failed to upsert paper", "pmid", data.Pmid, "err", err)
		return internalError(c)
	}
	added, err := qtx.AddArticleToProject(ctx, pgdb.AddArticleToProjectParams{
		ProjectID:   data.ID,
		ArticlePmid: article.Pmid,
		AddedBy:     userRef(user),
	})
	if err != nil {
		logger.Error("Failed to add paper to project", "project_id", data.ID, "pmid", data.Pmid, "err", err)
		return internalError(c)
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Failed to commit transaction", "err", err)
		return internalError(c)
	}

	if added > 0 {
		if err := app.Cache.InvalidateProject(ctx, data.ID); err != nil {
			logger.Warn("Failed to invalidate project cache", "project_id", data.ID, "err", err)
		}
	}
	if data.Triage {
		err := queue.EnqueueTriage(ctx, app.Queue, queue.TriageMsg{
			ProjectID:   data.ID,
			ArticlePmid: article.Pmid,
			RequestedBy: user.UserID,
		})
		if err != nil {
			logger.Warn("Failed to enqueue triage", "project_id", data.ID, "pmid", article.Pmid, "err", err)
		}
	}
	if app.Flags.PDFFetch && article.Doi != "" && !article.PdfKey.Valid {
		if err := queue.EnqueuePDF(ctx, app.Queue, queue.PDFMsg{ArticlePmid: article.Pmid}); err != nil {
			logger.Warn("Failed to enqueue PDF fetch", "pmid", article.Pmid, "err", err)
		}
	}

	status := http.StatusOK
	if added > 0 {
		status = http.StatusCreated
	}
	return c.JSON(status, addPaperResponse{
		Message: "Paper added",
		Paper:   &article,
		Added:   added > 0,
	})
}

// RequestPaperPDFHandler queues an open-access PDF lookup for an article.
func RequestPaperPDFHandler(c echo.Context) error {
	type requestPDFParams struct {
		Pmid string `param:"pmid" validate:"required,numeric,max=12"`
	}

	params := new(requestPDFParams)
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
	if !app.Flags.PDFFetch {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "PDF fetching is disabled"})
	}

	ctx := c.Request().Context()
	article, err := pgdb.New(app.DBConn).GetArticle(ctx, params.Pmid)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Paper not found"})
	}
	if err != nil {
		logger.Error("Failed to load paper", "pmid", params.Pmid, "err", err)
		return internalError(c)
	}
	if article.Doi == "" {
		return c.JSON(http.StatusUnprocessableEntity, messageResponse{Message: "Paper has no DOI"})
	}

	if err := queue.EnqueuePDF(ctx, app.Queue, queue.PDFMsg{ArticlePmid: article.Pmid}); err != nil {
		logger.Error("Failed to enqueue PDF fetch", "pmid", article.Pmid, "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusAccepted, messageResponse{Message: "PDF fetch queued"})
}

func articleParamsFromPubMed(a pubmed.Article) pgdb.UpsertArticleParams {
	params := pgdb.UpsertArticleParams{
		Pmid:     a.PMID,
		Title:    util.SanitizePostgresText(a.Title),
		Abstract: util.SanitizePostgresText(a.Abstract),
		Journal:  util.SanitizePostgresText(a.Journal),
		Doi:      a.DOI,
	}
	if a.PubYear > 0 {
		params.PubYear = pgtype.Int4{Int32: int32(a.PubYear), Valid: true}
	}
	return params
}
