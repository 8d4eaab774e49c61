// Package main is the entry point for the TickStock core service. It
// wires the databases, broker client and event distribution pipeline,
// starts the background scheduler and serves the operator API until a
// shutdown signal arrives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/config"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/di"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/server"
	"github.com/mcfalli/TickStockAppV2-sub021/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration first to get the log level.
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting TickStock core")

	// Wire databases, broker client, repositories, services and the
	// monitoring pipeline. Nothing consumes messages yet.
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Start consuming the error and monitoring channels, then the
	// maintenance scheduler.
	container.Distributor.Start()
	container.Scheduler.Start()

	srv := server.New(cfg, container, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("TickStock core started")

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	// Stop accepting requests first, then the channel consumers and
	// background jobs. Databases close last so in-flight work can
	// still persist its state.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	container.Distributor.Stop()
	container.Scheduler.Stop()

	container.Close()

	log.Info().Msg("Shutdown complete")
}
