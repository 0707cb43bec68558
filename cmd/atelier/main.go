package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/atelier-erp/atelier-erp/internal/app"
	"github.com/atelier-erp/atelier-erp/internal/artifact"
	"github.com/atelier-erp/atelier-erp/internal/observability"
	"github.com/atelier-erp/atelier-erp/internal/params"
	"github.com/atelier-erp/atelier-erp/internal/platform/cache"
	"github.com/atelier-erp/atelier-erp/internal/platform/db"
	"github.com/atelier-erp/atelier-erp/internal/projects"
	"github.com/atelier-erp/atelier-erp/internal/purchasing"
	"github.com/atelier-erp/atelier-erp/internal/quotes"
	"github.com/atelier-erp/atelier-erp/internal/render"
	"github.com/atelier-erp/atelier-erp/internal/shared"
	"github.com/atelier-erp/atelier-erp/jobs"
)

func main() {
	_ = godotenv.Load()

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	paramStore := params.NewStore(params.NewPGBackend(pool), redisClient, cfg.ParamCacheTTL)

	projectService := projects.NewService(projects.NewRepository(pool), logger)
	quoteService := quotes.NewService(quotes.NewRepository(pool), metrics, auditLogger, logger)
	orderService := purchasing.NewService(
		purchasing.NewRepository(pool),
		metrics,
		auditLogger,
		render.NewOrderRenderer(),
		store,
		paramStore,
		logger,
		cfg.SupervisorCodeHash,
	)

	var renderQueue purchasing.RenderQueue
	var jobsHandler app.RouteMounter
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobsClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init jobs client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		renderQueue = asyncRenderQueue{client: jobsClient}

		inspector := asynq.NewInspector(redisOpts)
		defer inspector.Close()
		jobsHandler = jobs.NewHandler(inspector, jobsClient, logger)
	}

	router := app.NewRouter(app.RouterConfig{
		Middleware:     app.MiddlewareConfig{Logger: logger, Config: cfg, Metrics: metrics},
		Metrics:        metrics,
		Projects:       projects.NewHandler(logger, projectService),
		Quotes:         quotes.NewHandler(logger, quoteService),
		PurchaseOrders: purchasing.NewHandler(logger, orderService, renderQueue),
		Params:         params.NewHandler(paramStore),
		Jobs:           jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

// asyncRenderQueue adapts the jobs client to the purchasing render port.
type asyncRenderQueue struct {
	client *jobs.Client
}

func (q asyncRenderQueue) EnqueueRenderOrder(ctx context.Context, orderID int64) error {
	_, err := q.client.EnqueueRenderOrder(ctx, orderID)
	return err
}

func (q asyncRenderQueue) EnqueueRenderProject(ctx context.Context, projectID int64) error {
	_, err := q.client.EnqueueRenderProject(ctx, projectID)
	return err
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
