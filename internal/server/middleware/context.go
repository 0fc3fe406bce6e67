package middleware

import (
	"context"

	"github.com/bridgewise/backend/internal/queue"
	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/rank"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// RecomputeQueue enqueues precomputation requests.
type RecomputeQueue interface {
	PublishRecompute(ctx context.Context, msg queue.RecomputeMsg) error
}

// DownloadLinker presigns artifact downloads.
type DownloadLinker interface {
	DownloadLink(ctx context.Context, key string) (string, error)
}

type App struct {
	Holder    *artifact.Holder
	Ranker    *rank.Ranker
	Recompute RecomputeQueue

	// Blobs and Links are set when artifacts live in object storage.
	Blobs *artifact.BlobStore
	Links DownloadLinker

	Key            keyfunc.Keyfunc
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
