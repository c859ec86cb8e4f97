package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/server/middleware"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

// GetEvidenceHandler lists the evidence links of a hypothesis. Links with
// no added_by were created by triage.
func GetEvidenceHandler(c echo.Context) error {
	type getEvidenceParams struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	type getEvidenceResponse struct {
		Message    string                    `json:"message"`
		Hypothesis *pgdb.Hypothesis          `json:"hypothesis,omitempty"`
		Evidence   []pgdb.HypothesisEvidence `json:"evidence"`
	}

	params := new(getEvidenceParams)
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

	hyp, ok, err := hypothesisForUser(c, q, user, params.ID, false)
	if !ok {
		return err
	}

	links, err := q.ListEvidenceByHypothesis(ctx, hyp.ID)
	if err != nil {
		logger.Error("Failed to list evidence", "hypothesis_id", hyp.ID, "err", err)
		return internalError(c)
	}
	if links == nil {
		links = []pgdb.HypothesisEvidence{}
	}

	return c.JSON(http.StatusOK, getEvidenceResponse{
		Message:    "Evidence fetched",
		Hypothesis: &hyp,
		Evidence:   links,
	})
}
