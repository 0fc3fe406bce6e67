package routes

import (
	"net/http"

	"github.com/bridgewise/backend/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports liveness and the artifact currently served.
func HealthHandler(c echo.Context) error {
	type healthResponse struct {
		Status   string  `json:"status"`
		Artifact *string `json:"artifact"`
	}

	res := healthResponse{Status: "ok"}
	if snap := c.(*middleware.AppContext).App.Holder.Load(); snap != nil {
		id := snap.ID()
		res.Artifact = &id
	}
	return c.JSON(http.StatusOK, res)
}
