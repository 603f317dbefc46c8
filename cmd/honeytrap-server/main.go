// Package main provides the honeytrap HTTP server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/honeytrap/internal/api"
	"github.com/raphaelgruber/honeytrap/internal/config"
	"github.com/raphaelgruber/honeytrap/internal/db"
	"github.com/raphaelgruber/honeytrap/internal/llm"
	"github.com/raphaelgruber/honeytrap/internal/memstore"
	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/scheduler"
	"github.com/raphaelgruber/honeytrap/internal/server"
	"github.com/raphaelgruber/honeytrap/internal/service"
)

const version = "0.1.0"

// store is what the server needs from a backing store: the service surface
// plus durable job persistence.
type store interface {
	service.Store
	scheduler.JobStore
}

func main() {
	// Parse flags
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("honeytrap-server starting",
		"version", version,
		"port", cfg.ServerPort,
		"store", cfg.Store,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mc := metrics.NewCollector()

	st, closeStore, err := openStore(ctx, cfg, logger, mc)
	if err != nil {
		logger.Error("failed to open store", "store", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	// Wipe database if requested (via flag or env var)
	if *wipeDB || os.Getenv("HONEYTRAP_WIPE_DB") == "true" {
		if w, ok := st.(interface{ WipeData(context.Context) error }); ok {
			wipeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := w.WipeData(wipeCtx)
			cancel()
			if err != nil {
				logger.Error("failed to wipe database", "error", err)
				os.Exit(1)
			}
			logger.Warn("database wiped")
		}
	}

	model, err := llm.NewModel(ctx, cfg, mc)
	if err != nil {
		logger.Error("failed to create llm model", "error", err)
		os.Exit(1)
	}
	logger.Info("llm initialized", "model", model.Model())

	schedOpts := scheduler.Options{
		Workers: cfg.Workers,
		Grace:   cfg.MisfireGrace,
		Metrics: mc,
	}
	if cfg.PersistJobs {
		schedOpts.Store = st
	}
	sched := scheduler.New(schedOpts)

	svc := service.New(service.Deps{
		Store:     st,
		Oracle:    model,
		Scheduler: sched,
		Metrics:   mc,
		Options:   service.OptionsFromConfig(cfg),
	})

	if err := svc.Schedule(ctx); err != nil {
		logger.Error("failed to schedule background jobs", "error", err)
		os.Exit(1)
	}
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler started", "workers", cfg.Workers, "jobs", len(sched.Jobs()))

	srv := server.New(":"+cfg.ServerPort, api.NewHandler(svc, mc).Routes(), logger)
	runErr := srv.Run(ctx)

	logger.Info("shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	svc.Decoys.Wait()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Error("scheduler forced to stop", "error", err)
	}

	if runErr != nil {
		logger.Error("server error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// openStore connects the configured store engine and returns it with its
// close function.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger, mc *metrics.Collector) (store, func() error, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), func() error { return nil }, nil
	}

	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := db.NewClient(connectCtx, dbCfg, logger, mc)
	if err != nil {
		return nil, nil, err
	}
	if err := client.InitSchema(connectCtx); err != nil {
		_ = client.Close(context.Background())
		return nil, nil, err
	}
	return client, func() error {
		logger.Info("closing database connection")
		return client.Close(context.Background())
	}, nil
}
