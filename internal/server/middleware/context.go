package middleware

import (
	"github.com/OFFIS-RIT/kgstore/internal/queue"
	"github.com/OFFIS-RIT/kgstore/pkg/graph"
	"github.com/OFFIS-RIT/kgstore/pkg/ingest"
	"github.com/OFFIS-RIT/kgstore/pkg/query"
	"github.com/OFFIS-RIT/kgstore/pkg/validation"

	"github.com/labstack/echo/v4"
)

// App holds the services every handler works with. Queue and Analyst are
// optional: without a queue ingestion runs inside the request, without an
// analyst /api/chat is unavailable.
type App struct {
	Graph     *graph.Graph
	Ingestor  *ingest.Ingestor
	Retriever *query.Retriever
	Analyst   *query.Analyst
	Validator *validation.Validator
	Queue     queue.Publisher

	Hops         int
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{c, app})
		}
	}
}

// GetApp returns the App attached by AppContextMiddleware.
func GetApp(c echo.Context) *App {
	if ac, ok := c.(*AppContext); ok {
		return ac.App
	}
	return nil
}
