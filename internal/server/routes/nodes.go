package routes

import (
	"net/http"
	"strconv"

	"github.com/OFFIS-RIT/kgstore/internal/server/middleware"
	"github.com/OFFIS-RIT/kgstore/pkg/common"

	"github.com/labstack/echo/v4"
)

func CreateNodeHandler(c echo.Context) error {
	type createNodeBody struct {
		ID   string            `json:"id" validate:"required"`
		Type common.EntityType `json:"type" validate:"required,entity_type"`
		Data map[string]any    `json:"data"`
	}

	data := new(createNodeBody)
	if err := c.Bind(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()
	if err := app.Graph.AddNode(ctx, data.ID, data.Type, data.Data); err != nil {
		return graphError(c, err)
	}
	node, err := app.Graph.GetNode(ctx, data.ID)
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusCreated, node)
}

func GetNodeHandler(c echo.Context) error {
	app := middleware.GetApp(c)
	node, err := app.Graph.GetNode(c.Request().Context(), entityID(c))
	if err != nil {
		return graphError(c, err)
	}
	if node == nil {
		return message(c, http.StatusNotFound, "Entity not found")
	}
	return c.JSON(http.StatusOK, node)
}

// GetNodeEdgesHandler returns the outgoing edges of a node, optionally
// filtered by ?relation=.
func GetNodeEdgesHandler(c echo.Context) error {
	type getNodeEdgesResponse struct {
		Edges []common.Relationship `json:"edges"`
	}

	relation := common.RelationType(c.QueryParam("relation"))
	if relation != "" && !relation.Valid() {
		return message(c, http.StatusBadRequest, "Invalid relation")
	}

	app := middleware.GetApp(c)
	edges, err := app.Graph.GetEdges(c.Request().Context(), entityID(c), relation)
	if err != nil {
		return graphError(c, err)
	}
	if edges == nil {
		edges = []common.Relationship{}
	}
	return c.JSON(http.StatusOK, getNodeEdgesResponse{Edges: edges})
}

// TraverseNodeHandler runs a breadth-first traversal from the node, up to
// ?hops= hops.
func TraverseNodeHandler(c echo.Context) error {
	app := middleware.GetApp(c)

	hops := app.Hops
	if raw := c.QueryParam("hops"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return message(c, http.StatusBadRequest, "Invalid hops")
		}
		hops = n
	}

	sub, err := app.Graph.Traverse(c.Request().Context(), entityID(c), hops)
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

func GetOrphansHandler(c echo.Context) error {
	type getOrphansResponse struct {
		Orphans []common.Entity `json:"orphans"`
	}

	app := middleware.GetApp(c)
	orphans, err := app.Graph.GetOrphans(c.Request().Context())
	if err != nil {
		return graphError(c, err)
	}
	if orphans == nil {
		orphans = []common.Entity{}
	}
	return c.JSON(http.StatusOK, getOrphansResponse{Orphans: orphans})
}
