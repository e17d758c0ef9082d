package routes

import (
	"net/http"
	"strings"

	"github.com/OFFIS-RIT/kgstore/internal/server/middleware"
	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/query"

	"github.com/labstack/echo/v4"
)

// RetrieveHandler returns the subgraph around the entities a question
// mentions, or around an explicit list of entities.
func RetrieveHandler(c echo.Context) error {
	type retrieveBody struct {
		Question string   `json:"question"`
		Entities []string `json:"entities"`
		Hops     int      `json:"hops" validate:"gte=0"`
	}

	type retrieveResponse struct {
		Entities []string                 `json:"entities"`
		Graph    *common.Graph            `json:"graph"`
		Context  string                   `json:"context"`
		Trace    query.QueryTraceSnapshot `json:"trace"`
	}

	data := new(retrieveBody)
	if err := c.Bind(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(data.Question) == "" && len(data.Entities) == 0 {
		return message(c, http.StatusBadRequest, "Either question or entities is required")
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()
	hops := data.Hops
	if hops == 0 {
		hops = app.Hops
	}

	trace := query.NewQueryTrace()
	ids := data.Entities
	if len(ids) == 0 {
		matched, err := app.Retriever.MatchEntities(ctx, data.Question)
		if err != nil {
			return graphError(c, err)
		}
		ids = matched
		query.RecordEntityIDs(trace, query.TraceEventMatchedEntityIDs, ids...)
	}

	sub, err := app.Retriever.Retrieve(ctx, ids, hops, trace)
	if err != nil {
		return graphError(c, err)
	}

	return c.JSON(http.StatusOK, retrieveResponse{
		Entities: ids,
		Graph:    sub,
		Context:  query.FormatContext(sub),
		Trace:    trace.Snapshot(),
	})
}
