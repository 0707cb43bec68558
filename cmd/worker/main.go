package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/atelier-erp/atelier-erp/internal/app"
	"github.com/atelier-erp/atelier-erp/internal/artifact"
	jobmetrics "github.com/atelier-erp/atelier-erp/internal/jobs"
	"github.com/atelier-erp/atelier-erp/internal/params"
	"github.com/atelier-erp/atelier-erp/internal/platform/cache"
	"github.com/atelier-erp/atelier-erp/internal/platform/db"
	"github.com/atelier-erp/atelier-erp/internal/purchasing"
	"github.com/atelier-erp/atelier-erp/internal/quotes"
	"github.com/atelier-erp/atelier-erp/internal/render"
	"github.com/atelier-erp/atelier-erp/internal/shared"
	"github.com/atelier-erp/atelier-erp/jobs"
)

func main() {
	_ = godotenv.Load()

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, parameter cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	store, err := newArtifactStore(ctx, cfg)
	if err != nil {
		logger.Error("init artifact store", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)
	auditLogger := shared.NewAuditLogger(pool)
	paramStore := params.NewStore(params.NewPGBackend(pool), redisClient, cfg.ParamCacheTTL)

	quoteService := quotes.NewService(quotes.NewRepository(pool), nil, auditLogger, logger)
	orderService := purchasing.NewService(
		purchasing.NewRepository(pool),
		nil,
		auditLogger,
		render.NewOrderRenderer(),
		store,
		paramStore,
		logger,
		cfg.SupervisorCodeHash,
	)

	renderJob := jobs.NewRenderOrderJob(orderService, logger, metrics)
	expireJob := jobs.NewExpireQuotesJob(quoteService, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeRenderOrder, Handler: renderJob.Handle},
			{Type: jobs.TaskTypeRenderProject, Handler: renderJob.HandleProject},
			{Type: jobs.TaskTypeExpireQuotes, Handler: expireJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: jobs.NewExpireQuotesTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func newArtifactStore(ctx context.Context, cfg *app.Config) (artifact.Store, error) {
	if cfg.ArtifactDriver == "s3" {
		return artifact.NewS3Store(ctx, artifact.S3Config{
			Bucket:    cfg.ArtifactS3Bucket,
			Region:    cfg.ArtifactS3Region,
			Endpoint:  cfg.ArtifactS3Endpoint,
			PathStyle: cfg.ArtifactS3PathStyle,
		})
	}
	return artifact.NewFSStore(cfg.ArtifactDir)
}
