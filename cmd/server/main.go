// Package main is the entry point for the X-Ray portfolio risk service.
// It serves stress-aware analyses of a portfolio over HTTP, backed by a
// SQLite price history and a cache of completed runs.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/xray/internal/config"
	"github.com/aristath/xray/internal/database"
	"github.com/aristath/xray/internal/di"
	"github.com/aristath/xray/internal/server"
	"github.com/aristath/xray/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Float64("stress_quantile", cfg.StressQuantile).
		Msg("Starting X-Ray")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Drop runs that expired while the service was down
	if err := container.Scheduler.RunNow(jobs.RunCacheCleanup); err != nil {
		log.Warn().Err(err).Msg("Startup run cache cleanup failed")
	}

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		HistoryDB: container.HistoryDB,
		CacheDB:   container.CacheDB,
		Service:   container.XRayService,
		History:   container.HistoryRepo,
		Scheduler: container.Scheduler,
		Jobs:      jobs.All(),
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	container.Scheduler.Stop()

	// Flush WAL so the databases are self-contained on disk
	for _, db := range []*database.DB{container.HistoryDB, container.CacheDB} {
		if _, err := db.WALCheckpoint("TRUNCATE"); err != nil {
			log.Warn().Err(err).Str("database", db.Name()).Msg("Final WAL checkpoint failed")
		}
	}

	log.Info().Msg("Server stopped")
}
