package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/kgstore/internal/backend"
	"github.com/OFFIS-RIT/kgstore/internal/queue"
	"github.com/OFFIS-RIT/kgstore/internal/storage"
	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		Level: util.GetEnv("LOG_LEVEL"),
	})
	logger.Init(consoleLogger)

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
	if services.ExtractClient == nil {
		logger.Warn("No AI provider configured, only messages with triples can be ingested")
	}

	conn, err := queue.Init(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	processor := queue.NewProcessor(services.Ingestor, b.Locks)
	worker := queue.NewWorker(conn, processor, services.ExtractClient)
	if err := worker.Run(ctx); err != nil {
		logger.Error("Worker stopped", "err", err)
		return
	}
	logger.Info("Shutdown signal received, exiting...")
}
