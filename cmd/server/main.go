/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the revenue recognition server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, then environment)
  2. Build the zerolog logger
  3. Open the store (sqlite3, pgx or memory)
  4. Create metrics, engine and API handler
  5. Start the recognition scheduler
  6. Start server with graceful shutdown

ENVIRONMENT:
  PORT, SERVER_TIMEOUT, CORS_ORIGINS
  DB_DRIVER (sqlite3 | pgx | memory), DB_DSN
  LOG_LEVEL, LOG_PRETTY
  SCHEDULER_ENABLED, SCHEDULER_INTERVAL
  ENGINE_WORKERS
  See config/config.go for defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a pass in progress)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  DB_DSN=./data/revenue.db ./server

  # Run without persistence
  DB_DRIVER=memory ./server

  # Run against Postgres
  DB_DRIVER=pgx DB_DSN=postgres://localhost/revenue ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqldb/sqldb.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/revenue-engine/api"
	"github.com/warp/revenue-engine/config"
	"github.com/warp/revenue-engine/generic"
	gstore "github.com/warp/revenue-engine/generic/store"
	"github.com/warp/revenue-engine/logger"
	"github.com/warp/revenue-engine/revenue"
	"github.com/warp/revenue-engine/store/memory"
	"github.com/warp/revenue-engine/store/sqldb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", true).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	repo, journal, closer, err := openStores(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("failed to initialize database")
	}
	defer closer.Close()

	metrics, err := revenue.NewMetrics(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create metrics")
	}

	engine := revenue.NewEngine(revenue.EngineConfig{
		Repository: repo,
		Journal:    journal,
		Metrics:    metrics,
		Logger:     log,
		Workers:    cfg.Engine.Workers,
	})

	handler := api.NewHandler(engine)
	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         log,
		AllowedOrigins: cfg.App.Origins,
		Timeout:        cfg.App.Timeout,
	})

	scheduler := api.NewRecognitionScheduler(engine, log)
	scheduler.Interval = cfg.Scheduler.Interval
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.App.Timeout,
		WriteTimeout: cfg.App.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("driver", cfg.DB.Driver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// openStores returns the repository and journal for the configured driver.
func openStores(cfg *config.Config) (revenue.Repository, generic.Store, io.Closer, error) {
	if cfg.DB.Driver == config.DriverMemory {
		return memory.New(), gstore.NewTxMemory(), nopCloser{}, nil
	}
	store, err := sqldb.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, store, store, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
