// Package main is the entry point for the experiment service.
//
// The service exposes the run history and event stream over HTTP, accepts new
// runs through the API, optionally runs experiments on a cron schedule and
// performs daily database maintenance.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/qaoa/internal/config"
	"github.com/aristath/qaoa/internal/di"
	"github.com/aristath/qaoa/internal/scheduler"
	"github.com/aristath/qaoa/internal/server"
	"github.com/aristath/qaoa/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting experiment service")

	// Runs submitted over HTTP live until shutdown
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	container, err := di.Wire(runCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Runs left "running" by a previous process can never finish
	if n, err := container.RunRepo.MarkInterrupted(runCtx, time.Now()); err != nil {
		log.Error().Err(err).Msg("Failed to mark interrupted runs")
	} else if n > 0 {
		log.Warn().Int64("runs", n).Msg("Marked interrupted runs as failed")
	}

	sched := scheduler.New(log)
	if _, err := di.RegisterJobs(container, cfg, sched, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.LogPretty,
		DB:           container.RunsDB,
		Runs:         container.RunRepo,
		Experiment:   container.ExperimentService,
		Catalog:      container.Catalog,
		Cloud:        container.CloudBackends,
		Bus:          container.EventBus,
		Charts:       container.ChartService,
		DefaultGraph: container.Graph,
		BaseContext:  runCtx,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Experiment service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down experiment service...")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight runs are cancelled and recorded as failed
	cancelRuns()
	container.ExperimentService.Wait()

	log.Info().Msg("Experiment service stopped")
}
