package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

func GetCollectionsHandler(c echo.Context) error {
	type getCollectionsParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	type getCollectionsResponse struct {
		Message     string                             `json:"message"`
		Collections []pgdb.ListCollectionsByProjectRow `json:"collections"`
	}

	params := new(getCollectionsParams)
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

	collections, err := q.ListCollectionsByProject(ctx, params.ID)
	if err != nil {
		logger.Error("Failed to list collections", "project_id", params.ID, "err", err)
		return internalError(c)
	}
	if collections == nil {
		collections = []pgdb.ListCollectionsByProjectRow{}
	}

	return c.JSON(http.StatusOK, getCollectionsResponse{
		Message:     "Collections fetched",
		Collections: collections,
	})
}

func GetCollectionPapersHandler(c echo.Context) error {
	type getCollectionPapersParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	type getCollectionPapersResponse struct {
		Message    string           `json:"message"`
		Collection *pgdb.Collection `json:"collection,omitempty"`
		Papers     []pgdb.Article   `json:"papers"`
	}

	params := new(getCollectionPapersParams)
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

	col, ok, err := collectionForUser(c, q, user, params.ID, false)
	if !ok {
		return err
	}

	papers, err := q.ListCollectionArticles(ctx, col.ID)
	if err != nil {
		logger.Error("Failed to list collection papers", "collection_id", col.ID, "err", err)
		return internalError(c)
	}
	if papers == nil {
		papers = []pgdb.Article{}
	}

	return c.JSON(http.StatusOK, getCollectionPapersResponse{
		Message:    "Collection papers fetched",
		Collection: &col,
		Papers:     papers,
	})
}
