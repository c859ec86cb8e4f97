package routes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/cache"
	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
	"github.com/rd-agent/backend/pkg/suggest"
)

// GetSuggestionsHandler proposes collections built from the project's
// must-read papers. Results are cached until the project changes.
func GetSuggestionsHandler(c echo.Context) error {
	type getSuggestionsParams struct {
		ID        int64 `param:"id" validate:"required,min=1"`
		MinPapers int   `query:"min_papers" validate:"omitempty,min=1,max=1000"`
	}

	type getSuggestionsResponse struct {
		Message     string               `json:"message"`
		Suggestions []suggest.Suggestion `json:"suggestions"`
	}

	params := new(getSuggestionsParams)
	if err := c.Bind(params); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(params); err != nil {
		return invalidParams(c)
	}
	if params.MinPapers == 0 {
		params.MinPapers = suggest.DefaultMinPapers
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	if !app.Flags.CollectionSuggestions {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Collection suggestions are disabled"})
	}

	ctx := c.Request().Context()
	q := pgdb.New(app.DBConn)
	if err := middleware.CheckProjectAccess(ctx, q, user, params.ID, false); err != nil {
		return accessDenied(c, err)
	}

	name := fmt.Sprintf("suggestions:%d", params.MinPapers)
	suggestions, err := cache.Remember(ctx, app.Cache, params.ID, name, func(ctx context.Context) ([]suggest.Suggestion, error) {
		return suggest.ForProject(ctx, q, params.ID, suggest.Options{MinPapers: params.MinPapers})
	})
	if err != nil {
		logger.Error("Failed to build suggestions", "project_id", params.ID, "err", err)
		return internalError(c)
	}
	if suggestions == nil {
		suggestions = []suggest.Suggestion{}
	}

	return c.JSON(http.StatusOK, getSuggestionsResponse{
		Message:     "Suggestions fetched",
		Suggestions: suggestions,
	})
}

// ApplySuggestionHandler turns one suggestion into a collection. The
// suggestion is recomputed from current data so a stale client list cannot
// create a collection the project no longer supports.
func ApplySuggestionHandler(c echo.Context) error {
	type applySuggestionBody struct {
		ID        int64  `param:"id" validate:"required,min=1"`
		Type      string `json:"type" validate:"required,oneof=hypothesis question high_impact"`
		SourceID  *int64 `json:"source_id" validate:"omitempty,min=1"`
		MinPapers int    `json:"min_papers" validate:"omitempty,min=1,max=1000"`
		Name      string `json:"name" validate:"max=200"`
	}

	type applySuggestionResponse struct {
		Message    string           `json:"message"`
		Collection *pgdb.Collection `json:"collection,omitempty"`
		Added      int64            `json:"added"`
	}

	data := new(applySuggestionBody)
	if err := c.Bind(data); err != nil {
		return invalidBody(c)
	}
	if err := c.Validate(data); err != nil {
		return invalidBody(c)
	}
	if data.MinPapers == 0 {
		data.MinPapers = suggest.DefaultMinPapers
	}
	if data.Type != string(suggest.TypeHighImpact) && data.SourceID == nil {
		return invalidBody(c)
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	if !app.Flags.CollectionSuggestions {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Collection suggestions are disabled"})
	}

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

	suggestions, err := suggest.ForProject(ctx, qtx, data.ID, suggest.Options{MinPapers: data.MinPapers})
	if err != nil {
		logger.Error("Failed to build suggestions", "project_id", data.ID, "err", err)
		return internalError(c)
	}
	chosen, found := findSuggestion(suggestions, suggest.Type(data.Type), data.SourceID)
	if !found {
		return c.JSON(http.StatusNotFound, applySuggestionResponse{Message: "Suggestion not found"})
	}
	if data.Name != "" {
		chosen.Name = data.Name
	}

	col, err := qtx.CreateCollection(ctx, pgdb.CreateCollectionParams{
		ProjectID:   data.ID,
		Name:        chosen.Name,
		Description: chosen.Description,
		SourceType:  string(chosen.Type),
		CreatedBy:   userRef(user),
	})
	if err != nil {
		logger.Error("Failed to create collection", "project_id", data.ID, "err", err)
		return internalError(c)
	}

	var added int64
	for _, pmid := range chosen.PMIDs {
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

	return c.JSON(http.StatusCreated, applySuggestionResponse{
		Message:    "Collection created from suggestion",
		Collection: &col,
		Added:      added,
	})
}

func findSuggestion(suggestions []suggest.Suggestion, t suggest.Type, sourceID *int64) (suggest.Suggestion, bool) {
	for _, s := range suggestions {
		if s.Type != t {
			continue
		}
		if t == suggest.TypeHighImpact {
			return s, true
		}
		if s.SourceID != nil && sourceID != nil && *s.SourceID == *sourceID {
			return s, true
		}
	}
	return suggest.Suggestion{}, false
}
