package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finetunelab/platform/internal/core/services/jobs"
	"github.com/finetunelab/platform/internal/core/services/lineage"
	"github.com/finetunelab/platform/internal/infrastructure/cache"
	"github.com/finetunelab/platform/internal/infrastructure/database"
	"github.com/finetunelab/platform/internal/infrastructure/database/repositories"
	"github.com/finetunelab/platform/internal/infrastructure/llm"
	"github.com/finetunelab/platform/internal/infrastructure/queue"
	"github.com/finetunelab/platform/internal/pkg/config"
	"github.com/finetunelab/platform/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	appLogger := logger.Initialize(cfg.Environment)
	cfg.LogConfig()

	db, err := database.NewPostgresDB(&cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		appLogger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisCache, err := cache.NewRedisCache(&cfg.Cache, appLogger)
	if err != nil {
		appLogger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisCache.Close()

	completionCache := cache.NewCompletionCache(
		redisCache,
		time.Duration(cfg.Cache.CompletionTTL)*time.Hour,
	)

	queueClient, err := queue.NewAsynqClient(&cfg.Queue, appLogger)
	if err != nil {
		appLogger.Error("failed to create queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer queueClient.Close()

	enqueuer := jobs.NewEnqueuer(queueClient, cfg.Queue.MaxRetries, appLogger)

	entryRepo := repositories.NewDatasetEntryRepository(db.DB, logger.NewServiceLogger("dataset-entries"))
	testingRepo := repositories.NewTestingEntryRepository(db.DB, logger.NewServiceLogger("testing-entries"))
	relabelRepo := repositories.NewRelabelRepository(db.DB, logger.NewServiceLogger("relabels"))

	lineageSvc := lineage.NewService(db.DB, enqueuer, logger.NewServiceLogger("lineage"))
	provider := llm.NewOpenAIProvider(&cfg.LLM, logger.NewServiceLogger("llm"))

	handlers := jobs.NewHandlers(
		entryRepo,
		testingRepo,
		relabelRepo,
		lineageSvc,
		provider,
		completionCache,
		enqueuer,
		cfg.Queue.MaxRetries,
		logger.NewServiceLogger("worker"),
	)

	server, err := queue.NewAsynqServer(&cfg.Queue, appLogger)
	if err != nil {
		appLogger.Error("failed to create queue server", slog.Any("error", err))
		os.Exit(1)
	}
	handlers.Register(server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Error("worker stopped with error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		appLogger.Info("shutting down worker", slog.String("signal", sig.String()))
		server.Shutdown()
	}

	appLogger.Info("worker stopped")
}
