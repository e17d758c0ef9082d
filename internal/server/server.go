// Package server exposes the knowledge graph over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/kgstore/internal/backend"
	"github.com/OFFIS-RIT/kgstore/internal/queue"
	mid "github.com/OFFIS-RIT/kgstore/internal/server/middleware"
	"github.com/OFFIS-RIT/kgstore/internal/storage"
	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/ingest"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"

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

// New builds the echo instance with middleware and routes for app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: ingest.NewValidator()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("20M"))

	RegisterRoutes(e)
	return e
}

// Init opens the configured backend and serves until SIGINT or SIGTERM.
func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := backend.Open(ctx, backend.ConfigFromEnv())
	if err != nil {
		logger.Fatal("Failed to open graph backend", "err", err)
	}
	defer b.Close()

	params := backend.ServicesParamsFromEnv()
	archive, err := storage.NewArchiveFromEnv(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 archive", "err", err)
	}
	if archive != nil {
		params.Archive = archive
	}

	services, err := backend.NewServices(b, params)
	if err != nil {
		logger.Fatal("Failed to create services", "err", err)
	}

	app := &mid.App{
		Graph:        b.Graph,
		Ingestor:     services.Ingestor,
		Retriever:    services.Retriever,
		Analyst:      services.Analyst,
		Validator:    services.Validator,
		Hops:         services.Hops,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	if util.GetEnv("RABBITMQ_HOST") != "" {
		conn, err := queue.Init(ctx)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", "err", err)
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			logger.Fatal("Failed to declare queues", "err", err)
		}
		app.Queue = ch
	}

	e := New(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port, "backend", b.Kind, "queue", app.Queue != nil, "analyst", app.Analyst != nil)
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
