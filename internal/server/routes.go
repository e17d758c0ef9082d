package server

import (
	"net/http"

	"github.com/OFFIS-RIT/kgstore/internal/server/middleware"
	"github.com/OFFIS-RIT/kgstore/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Graph routes
	apiRoutes.GET("/graph", routes.GetGraphHandler)
	apiRoutes.DELETE("/graph", routes.DeleteGraphHandler)
	apiRoutes.GET("/stats", routes.GetStatsHandler)
	apiRoutes.GET("/insights", routes.GetInsightsHandler)
	apiRoutes.GET("/orphans", routes.GetOrphansHandler)

	// Node and edge routes
	apiRoutes.POST("/nodes", routes.CreateNodeHandler)
	apiRoutes.GET("/nodes/:id", routes.GetNodeHandler)
	apiRoutes.GET("/nodes/:id/edges", routes.GetNodeEdgesHandler)
	apiRoutes.GET("/nodes/:id/traverse", routes.TraverseNodeHandler)
	apiRoutes.POST("/edges", routes.CreateEdgeHandler)

	// Document routes
	apiRoutes.GET("/documents", routes.GetDocumentsHandler)
	apiRoutes.DELETE("/documents/:id", routes.DeleteDocumentHandler)
	apiRoutes.POST("/ingest", routes.IngestHandler)

	// Query routes
	apiRoutes.POST("/retrieve", routes.RetrieveHandler)
	apiRoutes.POST("/chat", routes.ChatHandler)
}
