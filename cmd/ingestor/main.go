package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shieldsocial/commentsync/internal/cache"
	"github.com/shieldsocial/commentsync/internal/db"
	"github.com/shieldsocial/commentsync/internal/ingest"
	"github.com/shieldsocial/commentsync/internal/platform"
	"github.com/shieldsocial/commentsync/pkg/config"
	"github.com/shieldsocial/commentsync/pkg/logging"
	"github.com/shieldsocial/commentsync/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting comment ingestor")

	if cfg.Ingestion.Disabled {
		logger.Info("Ingestion disabled by configuration, exiting")
		return
	}

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	repo := db.NewRepository(database.DB)
	accounts := db.NewAccountRepository(repo)

	var opts []ingest.Option
	if redisCache != nil {
		opts = append(opts, ingest.WithResultStore(redisCache))
	}
	coordinator := ingest.NewCoordinator(
		platform.NewRegistry(&cfg.Platforms, &http.Client{}),
		accounts,
		db.NewCommentRepository(repo),
		opts...,
	)
	scheduler := ingest.NewScheduler(&cfg.Ingestion, coordinator, accounts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Scheduler stopped", zap.Error(err))
	}

	logger.Info("Ingestor exited")
}
