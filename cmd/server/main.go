package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/crmtools/customer-import/internal/config"
	"github.com/crmtools/customer-import/internal/importer"
	"github.com/crmtools/customer-import/internal/logging"
	"github.com/crmtools/customer-import/internal/store"
	"github.com/crmtools/customer-import/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"db_max_conns", cfg.Database.MaxConns,
		"import_workers", cfg.Import.Workers,
		"checkpoint_rows", cfg.Import.CheckpointRows,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if err := store.EnsureSchema(ctx, pool); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	jobs := store.NewJobStore(pool, slog.Default())
	customers := store.NewCustomerStore(pool, slog.Default())

	controller := importer.NewController(jobs, customers, cfg.Import.CheckpointRows, slog.Default())
	queue := importer.NewQueue(controller, slog.Default(),
		importer.WithWorkers(cfg.Import.Workers),
		importer.WithQueueSize(cfg.Import.QueueSize),
		importer.WithJobTimeout(cfg.Import.JobTimeout),
	)

	server := web.NewServer(jobs, customers, queue, cfg.Upload.Dir, cfg.Upload.MaxFileSize)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Server.Addr())
		errCh <- server.Start(cfg.Server.Addr(),
			cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		slog.Error("server stopped unexpectedly", "error", err)
		os.Exit(1)
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop intake first, then drain in-flight import jobs.
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
	queue.Shutdown(shutdownCtx)

	slog.Info("shutdown complete")
}
