package routes

import (
	"net/http"
	"strconv"

	"github.com/OFFIS-RIT/kgstore/internal/server/middleware"
	"github.com/OFFIS-RIT/kgstore/pkg/common"

	"github.com/labstack/echo/v4"
)

func GetDocumentsHandler(c echo.Context) error {
	type getDocumentsResponse struct {
		Documents []common.Document `json:"documents"`
	}

	app := middleware.GetApp(c)
	docs, err := app.Graph.AllDocuments(c.Request().Context())
	if err != nil {
		return graphError(c, err)
	}
	if docs == nil {
		docs = []common.Document{}
	}
	return c.JSON(http.StatusOK, getDocumentsResponse{Documents: docs})
}

// DeleteDocumentHandler deletes a document with its edges and returns the
// entities that were reclaimed.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteDocumentResponse struct {
		DocumentID int64    `json:"document_id"`
		Reclaimed  []string `json:"reclaimed"`
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return message(c, http.StatusBadRequest, "Invalid document id")
	}

	app := middleware.GetApp(c)
	reclaimed, err := app.Ingestor.DeleteDocument(c.Request().Context(), id)
	if err != nil {
		return graphError(c, err)
	}
	if reclaimed == nil {
		reclaimed = []string{}
	}
	return c.JSON(http.StatusOK, deleteDocumentResponse{DocumentID: id, Reclaimed: reclaimed})
}
