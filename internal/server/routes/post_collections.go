package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

const sourceManual = "manual"

// CreateCollectionHandler creates a manual collection, optionally seeded
// with project papers.
func CreateCollectionHandler(c echo.Context) error {
	type createCollectionBody struct {
		ID          int64    `param:"id" validate:"required,min=1"`
		Name        string   `json:"name" validate:"required,max=200"`
		Description string   `json:"description" validate:"max=2000"`
		Pmids       []string `json:"pmids" validate:"max=1000,dive,numeric,max=12"`
	}

	type createCollectionResponse struct {
		Message    string           `json:"message"`
		Collection *pgdb.Collection `json:"collection,omitempty"`
		Added      int64            `json:"added"`
	}

	data := new(createCollectionBody)
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

	tx, err := app.DBConn.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin transaction", "err", err)
		return internalError(c)
	}
	defer tx.Rollback(ctx)
	qtx := q.WithTx(tx)

	col, err := qtx.CreateCollection(ctx, pgdb.CreateCollectionParams{
		ProjectID:   data.ID,
		Name:        data.Name,
		Description: data.Description,
		SourceType:  sourceManual,
		CreatedBy:   userRef(user),
	})
	if err != nil {
		logger.Error("Failed to create collection", "project_id", data.ID, "err", err)
		return internalError(c)
	}

	var added int64
	for _, pmid := range data.Pmids {
		inProject, err := qtx.IsArticleInProject(ctx, pgdb.IsArticleInProjectParams{
			ProjectID:   data.ID,
			ArticlePmid: pmid,
		})
		if err != nil {
			logger.Error("Failed to check paper", "project_id", data.ID, "pmid", pmid, "err", err)
			return internalError(c)
		}
		if !inProject {
			return c.JSON(http.StatusBadRequest, createCollectionResponse{
				Message: "Paper " + pmid + " is not part of this project",
			})
		}
		n, err := qtx.AddArticleToCollection(ctx, pgdb.AddArticleToCollectionParams{
			CollectionID: col.ID,
			ArticlePmid:  pmid,
			AddedBy:      userRef(user),
		})
		if err != nil {
			logger.Error("Failed to add paper to collection", "collection_id", col.ID, "pmid", pmid, "err", err)
			return internalError(c)
		}
		added += n
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Failed to commit transaction", "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusCreated, createCollectionResponse{
		Message:    "Collection created",
		Collection: &col,
		Added:      added,
	})
}

// AddCollectionPaperHandler adds a project paper to a collection. Adding a
// paper twice is not an error.
func AddCollectionPaperHandler(c echo.Context) error {
	type addCollectionPaperBody struct {
		ID   int64  `param:"id" validate:"required,min=1"`
		Pmid string `json:"pmid" validate:"required,numeric,max=12"`
	}

	type addCollectionPaperResponse struct {
		Message string `json:"message"`
		Added   bool   `json:"added"`
	}

	data := new(addCollectionPaperBody)
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

	ctx := c.Request().Context()
	q := pgdb.New(c.(*middleware.AppContext).App.DBConn)

	col, ok, err := collectionForUser(c, q, user, data.ID, true)
	if !ok {
		return err
	}

	inProject, err := q.IsArticleInProject(ctx, pgdb.IsArticleInProjectParams{
		ProjectID:   col.ProjectID,
		ArticlePmid: data.Pmid,
	})
	if err != nil {
		logger.Error("Failed to check paper", "project_id", col.ProjectID, "pmid", data.Pmid, "err", err)
		return internalError(c)
	}
	if !inProject {
		return c.JSON(http.StatusBadRequest, addCollectionPaperResponse{
			Message: "Paper is not part of this project",
		})
	}

	n, err := q.AddArticleToCollection(ctx, pgdb.AddArticleToCollectionParams{
		CollectionID: col.ID,
		ArticlePmid:  data.Pmid,
		AddedBy:      userRef(user),
	})
	if err != nil {
		logger.Error("Failed to add paper to collection", "collection_id", col.ID, "pmid", data.Pmid, "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusOK, addCollectionPaperResponse{
		Message: "Paper added to collection",
		Added:   n > 0,
	})
}
