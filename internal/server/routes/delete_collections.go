package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

func DeleteCollectionHandler(c echo.Context) error {
	type deleteCollectionParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	params := new(deleteCollectionParams)
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

	col, ok, err := collectionForUser(c, q, user, params.ID, true)
	if !ok {
		return err
	}

	if _, err := q.DeleteCollection(ctx, col.ID); err != nil {
		logger.Error("Failed to delete collection", "collection_id", col.ID, "err", err)
		return internalError(c)
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Collection deleted"})
}

func RemoveCollectionPaperHandler(c echo.Context) error {
	type removeCollectionPaperParams struct {
		ID   int64  `param:"id" validate:"required,min=1"`
		Pmid string `json:"pmid" query:"pmid" validate:"required,numeric,max=12"`
	}

	params := new(removeCollectionPaperParams)
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

	col, ok, err := collectionForUser(c, q, user, params.ID, true)
	if !ok {
		return err
	}

	n, err := q.RemoveArticleFromCollection(ctx, pgdb.RemoveArticleFromCollectionParams{
		CollectionID: col.ID,
		ArticlePmid:  params.Pmid,
	})
	if err != nil {
		logger.Error("Failed to remove paper from collection", "collection_id", col.ID, "pmid", params.Pmid, "err", err)
		return internalError(c)
	}
	if n == 0 {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Paper is not in this collection"})
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Paper removed from collection"})
}
