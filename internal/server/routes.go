package server

import (
	"github.com/bridgewise/backend/internal/server/middleware"
	"github.com/bridgewise/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", routes.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Graph routes
	e.GET("/clusters", routes.GetClustersHandler)
	e.GET("/clusters/summary", routes.GetClustersSummaryHandler)
	e.GET("/clusters/:id", routes.GetClusterHandler)
	e.GET("/connections", routes.GetConnectionsHandler)
	e.GET("/person/:id", routes.GetPersonHandler)
	e.GET("/intro-path", routes.GetIntroPathHandler)
	e.GET("/artifact", routes.GetArtifactHandler)

	// Ranking routes
	e.POST("/rank", routes.RankHandler)
	e.POST("/rank-connections", routes.RankConnectionsHandler)
	e.POST("/rank-connections/graph", routes.RankGraphHandler)
	e.POST("/rank-connections/explain", routes.RankExplainHandler)
	e.POST("/rank-connections/batch", routes.RankBatchHandler)

	// Admin routes
	e.POST("/recompute", routes.RecomputeHandler, middleware.AuthMiddleware, middleware.RequirePermission(middleware.PermRecompute))
	e.GET("/artifact/download", routes.GetArtifactDownloadHandler, middleware.AuthMiddleware, middleware.RequireAnyPermission(middleware.PermArtifactDownload, middleware.PermRecompute))
}
