package routes

import (
	"errors"
	"net/http"

	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/rank"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error string `json:"error"`
}

// rankError maps ranking sentinels to status codes.
func rankError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, rank.ErrInvalidConfiguration):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, rank.ErrPersonNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, rank.ErrArtifactMissing):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "graph artifact not available, run the precomputation first"})
	}
	logger.Error("[Server] Request failed", "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}
