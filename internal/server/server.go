package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bridgewise/backend/internal/bootstrap"
	"github.com/bridgewise/backend/internal/config"
	"github.com/bridgewise/backend/internal/queue"
	mid "github.com/bridgewise/backend/internal/server/middleware"
	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New creates the echo instance serving app.
func New(app *mid.App, cfg config.ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	} else {
		e.Use(middleware.CORS())
	}
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	RegisterRoutes(e)
	return e
}

// Run serves the API until ctx is cancelled or SIGINT/SIGTERM is received.
func Run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close(context.Background())

	if _, err := res.Load(ctx, ""); err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			logger.Warn("[Server] No artifact published yet, graph routes return 503 until the first run")
		} else {
			logger.Error("[Server] Failed to load artifact", "err", err)
		}
	}

	app := &mid.App{
		Holder:         res.Holder,
		Ranker:         res.Ranker,
		MasterAPIKey:   cfg.Server.MasterAPIKey,
		MasterUserID:   cfg.Server.MasterUserID,
		MasterUserRole: cfg.Server.MasterUserRole,
	}
	if res.Bucket != nil {
		app.Blobs = res.Blobs
		app.Links = res.Bucket
	}

	if cfg.Server.AuthURL != "" {
		k, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.Server.AuthURL + "/jwks"})
		if err != nil {
			return err
		}
		app.Key = k
	}

	if url := cfg.Queue.URL(); url != "" {
		conn := queue.Init(url)
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			return err
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.RecomputeQueue}); err != nil {
			return err
		}
		app.Recompute = queue.NewRecomputePublisher(ch)

		subCh, err := conn.Channel()
		if err != nil {
			return err
		}
		defer subCh.Close()
		err = queue.SubscribeArtifactReady(ctx, subCh, func(ctx context.Context, meta artifact.Metadata) {
			if _, err := res.Load(ctx, meta.ID); err != nil {
				logger.Error("[Server] Failed to reload artifact", "artifact", meta.ID, "err", err)
			}
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn("[Server] RabbitMQ not configured, recompute requests are disabled")
	}

	e := New(app, cfg.Server)

	go func() {
		logger.Info("Starting server", "port", cfg.Server.Port)
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
	return nil
}
