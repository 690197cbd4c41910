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

	"github.com/iago/review-radar-back/internal/artifact"
	"github.com/iago/review-radar-back/internal/config"
	httpserver "github.com/iago/review-radar-back/internal/http"
	"github.com/iago/review-radar-back/internal/http/handlers"
	"github.com/iago/review-radar-back/internal/logging"
	"github.com/iago/review-radar-back/internal/repository"
	"github.com/iago/review-radar-back/internal/service"
	"github.com/iago/review-radar-back/internal/worker"
	"github.com/iago/review-radar-back/internal/workers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const restartNote = "Error: interrupted by service restart"

func main() {
	dotenvErr := config.LoadDotEnv(".env", ".env.local")
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	if dotenvErr != nil {
		logger.Warn("failed loading .env files", zap.Error(dotenvErr))
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, health, repoCloser := setupRepository(ctx, cfg, logger)
	defer repoCloser()

	// Assumes this is the only instance writing to the store.
	recovered, err := repo.FailUnfinished(ctx, restartNote, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recover unfinished analyses: %w", err)
	}
	if recovered > 0 {
		logger.Warn("marked interrupted analyses as failed", zap.Int("count", recovered))
	}

	workerDefs, err := config.LoadWorkers(cfg.WorkersConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("load worker registry: %w", err)
	}
	invoker := workers.NewInvoker(workerDefs, logger.Named("workers"),
		workers.WithLaunchLimit(workers.WorkerScrape, workers.NewScrapeLimiter(cfg.ScrapeRatePerMinute, cfg.ScrapeRateBurst)),
	)
	client := workers.NewClient(invoker)

	processor := worker.NewProcessor(repo, client, client, setupArchive(ctx, cfg, logger), logger.Named("pipeline"))
	dispatcher := worker.NewDispatcher(processor, cfg.PipelineMaxConcurrency, logger.Named("dispatcher"))

	jobsService := service.NewJobsService(repo, dispatcher, logger.Named("jobs"))
	api := handlers.NewAPI(jobsService, health, logger.Named("http"))
	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:         api,
		Logger:      logger.Named("http"),
		CORSOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("api listening", zap.String("addr", server.Addr), zap.String("store", cfg.ResolveStoreBackend()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful http shutdown failed", zap.Error(err))
		}
		if err := dispatcher.Shutdown(shutdownCtx); err != nil {
			logger.Warn("running analyses were cancelled", zap.Error(err))
		}
		return nil
	})

	return group.Wait()
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
) (repository.JobsRepository, repository.HealthChecker, func()) {
	memory := func(reason string, err error) (repository.JobsRepository, repository.HealthChecker, func()) {
		if err != nil {
			logger.Warn(reason+", fallback to memory", zap.Error(err))
		} else {
			logger.Info(reason + ", using in-memory repository")
		}
		return repository.NewMemoryJobsRepository(), nil, func() {}
	}

	switch cfg.ResolveStoreBackend() {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return memory("DATABASE_URL not configured", nil)
		}
		pgRepo, err := repository.NewPostgresJobsRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return memory("failed to initialize postgres repository", err)
		}
		logger.Info("postgres repository initialized")
		return pgRepo, pgRepo, pgRepo.Close
	case "mongo":
		if cfg.MongoURI == "" {
			return memory("MONGODB_URI not configured", nil)
		}
		mongoRepo, err := repository.NewMongoJobsRepository(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return memory("failed to initialize mongo repository", err)
		}
		logger.Info("mongo repository initialized", zap.String("database", cfg.MongoDatabase))
		return mongoRepo, mongoRepo, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoRepo.Close(closeCtx)
		}
	case "redis":
		if cfg.RedisAddr == "" {
			return memory("REDIS_ADDR not configured", nil)
		}
		redisRepo, err := repository.NewRedisJobsRepository(ctx, repository.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
		if err != nil {
			return memory("failed to initialize redis repository", err)
		}
		logger.Info("redis repository initialized", zap.String("addr", cfg.RedisAddr))
		return redisRepo, redisRepo, func() {
			_ = redisRepo.Close()
		}
	default:
		return memory("no persistent store configured", nil)
	}
}

func setupArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) artifact.Archive {
	if cfg.MinioEndpoint == "" {
		return artifact.Noop{}
	}
	archive, err := artifact.NewMinioArchive(ctx, artifact.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Warn("failed to initialize minio archive, raw worker output will not be kept", zap.Error(err))
		return artifact.Noop{}
	}
	logger.Info("minio archive initialized", zap.String("bucket", cfg.MinioBucket))
	return archive
}
