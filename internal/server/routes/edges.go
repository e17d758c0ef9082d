package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgstore/internal/server/middleware"
	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/graph"

	"github.com/labstack/echo/v4"
)

// CreateEdgeHandler upserts an edge. An existing edge only changes when the
// new confidence is higher.
func CreateEdgeHandler(c echo.Context) error {
	type createEdgeBody struct {
		Source           string              `json:"source" validate:"required"`
		Target           string              `json:"target" validate:"required"`
		Relation         common.RelationType `json:"relation" validate:"required,relation_type"`
		Confidence       float64             `json:"confidence"`
		SourceDocumentID *int64              `json:"source_document_id"`
		SourceText       string              `json:"source_text"`
	}

	data := new(createEdgeBody)
	if err := c.Bind(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}

	var opts []graph.EdgeOption
	if data.SourceDocumentID != nil {
		opts = append(opts, graph.WithSourceDocument(*data.SourceDocumentID))
	}
	if data.SourceText != "" {
		opts = append(opts, graph.WithSourceText(data.SourceText))
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()
	if err := app.Graph.AddEdge(ctx, data.Source, data.Target, data.Relation, data.Confidence, opts...); err != nil {
		return graphError(c, err)
	}

	edges, err := app.Graph.GetEdges(ctx, data.Source, data.Relation)
	if err != nil {
		return graphError(c, err)
	}
	for _, e := range edges {
		if e.Target == data.Target {
			return c.JSON(http.StatusCreated, e)
		}
	}
	return message(c, http.StatusCreated, "Edge stored")
}
