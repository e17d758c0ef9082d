package routes

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/OFFIS-RIT/kgstore/pkg/graph"
	"github.com/OFFIS-RIT/kgstore/pkg/ingest"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"

	"github.com/labstack/echo/v4"
)

type messageResponse struct {
	Message string `json:"message"`
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, messageResponse{Message: msg})
}

// graphError maps graph errors onto HTTP responses.
func graphError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, graph.ErrInvalidConfidence), errors.Is(err, graph.ErrEmptyID):
		return message(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, graph.ErrMissingEntity):
		return message(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrNoExtractor):
		return message(c, http.StatusServiceUnavailable, "No AI provider configured")
	default:
		logger.Error("[Server] Request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		return message(c, http.StatusInternalServerError, "Internal server error")
	}
}

// entityID returns the :id path parameter. Ids may contain slashes, which
// clients send escaped. echo routes on the raw path when the request has one,
// so only then is the parameter still escaped.
func entityID(c echo.Context) string {
	id := c.Param("id")
	if c.Request().URL.RawPath == "" {
		return id
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}
