package routes

import (
	"fmt"
	"net/http"

	"github.com/OFFIS-RIT/kgstore/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

const (
	chatModeAnalyze  = "analyze"
	chatModeIngest   = "ingest"
	chatModeValidate = "validate"
)

// ChatHandler answers a question from the graph. mode=ingest stores the
// message as a document instead, and mode=validate returns the validation
// report.
func ChatHandler(c echo.Context) error {
	type chatBody struct {
		Question string `json:"question"`
		Mode     string `json:"mode" validate:"omitempty,oneof=analyze ingest validate"`
		Filename string `json:"filename"`
	}

	type chatResponse struct {
		Type    string `json:"type"`
		Data    any    `json:"data"`
		Message string `json:"message"`
	}

	data := new(chatBody)
	if err := c.Bind(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid mode. Must be 'ingest', 'analyze', or 'validate'")
	}
	if data.Mode == "" {
		data.Mode = chatModeAnalyze
	}
	if data.Mode != chatModeValidate && data.Question == "" {
		return message(c, http.StatusBadRequest, "Question is required")
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	switch data.Mode {
	case chatModeValidate:
		report, err := app.Validator.Validate(ctx)
		if err != nil {
			return graphError(c, err)
		}
		r := report.ValidationResults
		return c.JSON(http.StatusOK, chatResponse{
			Type: "validation",
			Data: report,
			Message: fmt.Sprintf("Graph has %d entities, %d relations. Found %d orphans, %d violations.",
				r.TotalEntities, r.TotalRelations, len(r.OrphanNodes), len(r.SchemaViolations)),
		})
	case chatModeIngest:
		filename := data.Filename
		if filename == "" {
			filename = "Untitled"
		}
		res, err := app.Ingestor.Ingest(ctx, filename, data.Question)
		if err != nil {
			return graphError(c, err)
		}
		return c.JSON(http.StatusOK, chatResponse{
			Type: "ingestion",
			Data: res,
			Message: fmt.Sprintf("Extracted %d triples, %d orphans, %d ambiguities",
				len(res.Triples), len(res.Orphans), len(res.Ambiguities)),
		})
	default:
		if app.Analyst == nil {
			return message(c, http.StatusServiceUnavailable, "No AI provider configured")
		}
		ans, err := app.Analyst.Answer(ctx, data.Question)
		if err != nil {
			return graphError(c, err)
		}
		return c.JSON(http.StatusOK, chatResponse{Type: "analysis", Data: ans, Message: ans.Analysis})
	}
}
