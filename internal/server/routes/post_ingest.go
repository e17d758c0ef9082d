package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgstore/internal/queue"
	"github.com/OFFIS-RIT/kgstore/internal/server/middleware"
	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/ingest"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IngestHandler stores a document. Given triples are stored right away.
// Otherwise the text is extracted in the worker when a queue is configured,
// or inside the request when it is not.
func IngestHandler(c echo.Context) error {
	type ingestBody struct {
		Filename string          `json:"filename" validate:"required"`
		Content  string          `json:"content"`
		Triples  []common.Triple `json:"triples"`
	}

	type queuedResponse struct {
		Message       string `json:"message"`
		CorrelationID string `json:"correlation_id"`
	}

	data := new(ingestBody)
	if err := c.Bind(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}
	if data.Content == "" && len(data.Triples) == 0 {
		return message(c, http.StatusBadRequest, "Either content or triples is required")
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	if len(data.Triples) == 0 && app.Queue != nil {
		correlationID, err := gonanoid.New()
		if err != nil {
			return graphError(c, err)
		}
		err = queue.PublishJSON(ctx, app.Queue, queue.IngestQueue, queue.IngestMsg{
			CorrelationID: correlationID,
			Filename:      data.Filename,
			Content:       data.Content,
		})
		if err != nil {
			return graphError(c, err)
		}
		return c.JSON(http.StatusAccepted, queuedResponse{Message: "Document queued", CorrelationID: correlationID})
	}

	var (
		res *ingest.IngestResult
		err error
	)
	if len(data.Triples) > 0 {
		res, err = app.Ingestor.IngestTriples(ctx, data.Filename, data.Content, data.Triples)
	} else {
		res, err = app.Ingestor.Ingest(ctx, data.Filename, data.Content)
	}
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}
