package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/flags"
	"github.com/rd-agent/backend/internal/server/middleware"
)

func GetFeaturesHandler(c echo.Context) error {
	type getFeaturesResponse struct {
		Message  string      `json:"message"`
		Features flags.Flags `json:"features"`
	}

	if c.(*middleware.AppContext).User == nil {
		return unauthorized(c)
	}

	return c.JSON(http.StatusOK, getFeaturesResponse{
		Message:  "Features fetched",
		Features: c.(*middleware.AppContext).App.Flags,
	})
}
