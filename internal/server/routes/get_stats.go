package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgstore/internal/server/middleware"
	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/insights"
	"github.com/OFFIS-RIT/kgstore/pkg/validation"

	"github.com/labstack/echo/v4"
)

func GetStatsHandler(c echo.Context) error {
	type getStatsResponse struct {
		Stats           common.Stats       `json:"stats"`
		Validation      validation.Results `json:"validation"`
		Recommendations []string           `json:"recommendations"`
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	stats, err := app.Graph.Stats(ctx)
	if err != nil {
		return graphError(c, err)
	}
	report, err := app.Validator.Validate(ctx)
	if err != nil {
		return graphError(c, err)
	}

	return c.JSON(http.StatusOK, getStatsResponse{
		Stats:           stats,
		Validation:      report.ValidationResults,
		Recommendations: report.Recommendations,
	})
}

func GetInsightsHandler(c echo.Context) error {
	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	nodes, err := app.Graph.AllNodes(ctx)
	if err != nil {
		return graphError(c, err)
	}
	edges, err := app.Graph.AllEdges(ctx)
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusOK, insights.Compute(nodes, edges))
}
