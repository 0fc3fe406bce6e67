package routes

import (
	"net/http"

	"github.com/bridgewise/backend/internal/server/middleware"
	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetArtifactHandler describes the artifact currently served.
func GetArtifactHandler(c echo.Context) error {
	snap, err := snapshot(c)
	if err != nil {
		return rankError(c, err)
	}
	return c.JSON(http.StatusOK, artifact.MetadataOf(snap.Artifact))
}

// GetArtifactDownloadHandler redirects to a presigned download of the
// served artifact. Only available with object storage.
func GetArtifactDownloadHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	if app.Blobs == nil || app.Links == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Artifact downloads require object storage"})
	}
	snap, err := snapshot(c)
	if err != nil {
		return rankError(c, err)
	}

	link, err := app.Links.DownloadLink(c.Request().Context(), app.Blobs.ObjectKey(snap.ID()))
	if err != nil {
		logger.Error("[Server] Failed to presign artifact", "artifact", snap.ID(), "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
	return c.Redirect(http.StatusFound, link)
}
