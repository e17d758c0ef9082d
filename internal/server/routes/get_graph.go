package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgstore/internal/server/middleware"
	"github.com/OFFIS-RIT/kgstore/pkg/common"

	"github.com/labstack/echo/v4"
)

type graphNode struct {
	ID   string            `json:"id"`
	Type common.EntityType `json:"type"`
	Data map[string]any    `json:"data"`
}

type graphEdge struct {
	ID         string              `json:"id"`
	Source     string              `json:"source"`
	Target     string              `json:"target"`
	Relation   common.RelationType `json:"relation"`
	Confidence float64             `json:"confidence"`
}

// GetGraphHandler returns every node and edge together with the graph stats.
func GetGraphHandler(c echo.Context) error {
	type getGraphResponse struct {
		Nodes []graphNode  `json:"nodes"`
		Edges []graphEdge  `json:"edges"`
		Stats common.Stats `json:"stats"`
	}

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
	stats, err := app.Graph.Stats(ctx)
	if err != nil {
		return graphError(c, err)
	}

	res := getGraphResponse{
		Nodes: make([]graphNode, 0, len(nodes)),
		Edges: make([]graphEdge, 0, len(edges)),
		Stats: stats,
	}
	for _, n := range nodes {
		data := n.Data
		if data == nil {
			data = map[string]any{}
		}
		res.Nodes = append(res.Nodes, graphNode{ID: n.ID, Type: n.Type, Data: data})
	}
	for _, e := range edges {
		res.Edges = append(res.Edges, graphEdge{
			ID:         e.Key(),
			Source:     e.Source,
			Target:     e.Target,
			Relation:   e.Relation,
			Confidence: e.Confidence,
		})
	}
	return c.JSON(http.StatusOK, res)
}

// DeleteGraphHandler removes all nodes, edges and documents.
func DeleteGraphHandler(c echo.Context) error {
	app := middleware.GetApp(c)
	if err := app.Graph.Clear(c.Request().Context()); err != nil {
		return graphError(c, err)
	}
	return message(c, http.StatusOK, "Graph cleared")
}
