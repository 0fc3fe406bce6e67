package routes

import (
	"net/http"
	"strconv"

	"github.com/bridgewise/backend/internal/config"
	"github.com/bridgewise/backend/internal/queue"
	"github.com/bridgewise/backend/internal/server/middleware"
	"github.com/bridgewise/backend/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/labstack/echo/v4"
)

// RecomputeHandler enqueues a precomputation run. The optional goal is
// ranked right after the new artifact is published; params override the
// graph build and clustering settings of that run.
func RecomputeHandler(c echo.Context) error {
	type recomputeBody struct {
		Goal   *queue.GoalParams `json:"goal"`
		Params *config.Overrides `json:"params"`
	}

	type recomputeResponse struct {
		Message       string `json:"message"`
		CorrelationID string `json:"correlationId,omitempty"`
	}

	data := new(recomputeBody)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if data.Goal != nil && data.Goal.TopK <= 0 {
		return badRequest(c, "goal.top_k must be positive")
	}
	if data.Params != nil {
		if err := data.Params.Validate(); err != nil {
			return badRequest(c, err.Error())
		}
	}

	app := c.(*middleware.AppContext).App
	if app.Recompute == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "Recompute queue not configured"})
	}

	correlationID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
	msg := queue.RecomputeMsg{
		Message:       "Recompute requested via API",
		CorrelationID: correlationID,
		Goal:          data.Goal,
		Params:        data.Params,
	}
	if user := c.(*middleware.AppContext).User; user != nil {
		msg.RequestedBy = strconv.FormatInt(user.UserID, 10)
	}

	if err := app.Recompute.PublishRecompute(c.Request().Context(), msg); err != nil {
		logger.Error("[Server] Failed to enqueue recompute", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to enqueue recompute"})
	}

	return c.JSON(http.StatusAccepted, recomputeResponse{
		Message:       "Recompute queued",
		CorrelationID: correlationID,
	})
}
