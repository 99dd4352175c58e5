package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kosarica/catalog-service/config"
	_ "github.com/kosarica/catalog-service/docs"
	"github.com/kosarica/catalog-service/internal/archive"
	"github.com/kosarica/catalog-service/internal/audit"
	"github.com/kosarica/catalog-service/internal/clients"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/diff"
	"github.com/kosarica/catalog-service/internal/handlers"
	httpclient "github.com/kosarica/catalog-service/internal/http"
	"github.com/kosarica/catalog-service/internal/http/retry"
	"github.com/kosarica/catalog-service/internal/jobs"
	"github.com/kosarica/catalog-service/internal/metrics"
	"github.com/kosarica/catalog-service/internal/middleware"
	"github.com/kosarica/catalog-service/internal/pipeline"
	"github.com/kosarica/catalog-service/internal/publish"
	"github.com/kosarica/catalog-service/internal/resolver"
	"github.com/kosarica/catalog-service/internal/storage"
	"github.com/kosarica/catalog-service/internal/sweepers"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/kosarica/catalog-service/internal/telemetry"
	"github.com/kosarica/catalog-service/internal/workers"
)

// Global properties read at startup.
const (
	propFailureMaxLength = "failure_max_length"
	propResolverTTL      = "resolver_ttl_seconds"
)

// @title Catalog Service API
// @version 1.0
// @description Publishes versioned catalogs of titles and serves their entities.
// @BasePath /
// @securityDefinitions.apikey InternalAPIKey
// @in header
// @name X-Internal-API-Key
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Catalog service failed")
	}
	logger.Info().Msg("Server exited")
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("node", cfg.Worker.NodeID).Msg("Starting catalog service")

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	if cfg.Database.URL == "" {
		return errors.New("database url not set (CATS_DATABASE_URL or DATABASE_URL)")
	}
	pool, err := database.Connect(ctx, database.PoolConfig{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConnections,
		MinConns:    cfg.Database.MinConnections,
		MaxLifetime: cfg.Database.MaxConnLifetime,
		MaxIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	logger.Info().Msg("Database connected")

	props, err := database.Properties(ctx, pool)
	if err != nil {
		return err
	}
	failureMaxLength := database.IntProperty(props, propFailureMaxLength, cfg.FailureMaxLength)
	resolverTTL := time.Duration(database.IntProperty(props, propResolverTTL, int(cfg.Resolver.TTL/time.Second))) * time.Second

	recorder := metrics.NewRecorder()
	recorder.SetVersion(version(cfg))

	store, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		return fmt.Errorf("failed to open archive storage: %w", err)
	}

	cache, closeCache, err := newCache(ctx, cfg.Resolver, logger)
	if err != nil {
		return err
	}
	defer closeCache()
	res := resolver.New(resolver.NewDBStore(pool), cache, resolverTTL, recorder, *logger)

	emitter := audit.NewEmitter(newAuditSink(cfg.Audit, logger), cfg.Worker.NodeID, *logger)
	defer emitter.Close()

	policy := retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		AttemptTimeout: cfg.Retry.AttemptTimeout,
	}
	notifier := clients.NewNotifier(clients.NotifierConfig{
		Tools: map[string]clients.ToolConfig{
			clients.ToolCatool:  {BaseURL: cfg.Tools.Catool.BaseURL, Secret: cfg.Tools.Catool.Secret},
			clients.ToolCoupons: {BaseURL: cfg.Tools.Coupons.BaseURL, Secret: cfg.Tools.Coupons.Secret},
			clients.ToolManual:  {BaseURL: cfg.Tools.Manual.BaseURL, Secret: cfg.Tools.Manual.Secret},
		},
		Timeout: cfg.Tools.Timeout,
		Retry:   policy,
		Breaker: clients.DefaultBreakerConfig(),
	}, recorder, *logger)

	queue := taskqueue.New(pool)
	publishService := publish.NewService(pool, queue, emitter, res, notifier, *logger)

	engine := pipeline.New(pipeline.Deps{
		Pool:  pool,
		Queue: queue,
		Fetcher: httpclient.NewClient(httpclient.Config{
			Timeout:           cfg.Fetch.Timeout,
			MaxArchiveSize:    cfg.Fetch.MaxArchiveSize,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			Retry:             policy,
		}),
		Prodo: clients.NewProdo(clients.ProdoConfig{
			BaseURL: cfg.Prodo.BaseURL,
			Timeout: cfg.Prodo.Timeout,
			Retry:   policy,
		}, recorder, *logger),
		Franz: clients.NewFranz(clients.FranzConfig{
			BaseURL: cfg.Franz.BaseURL,
			Realm:   cfg.Realm,
			Timeout: cfg.Franz.Timeout,
			Retry:   policy,
		}, recorder, *logger),
		Notifier: notifier,
		Audit:    emitter,
		Parser:   archive.NewParser(archive.NewExpander(archive.DefaultExpandOptions(), *logger)),
		Storage:  store,
		Resolver: res,
		Metrics:  recorder,
		Logger:   *logger,
	})
	engine.SetFailureMaxLength(failureMaxLength)

	worker := workers.New(queue, engine, workers.WorkerConfig{
		NodeID:      cfg.Worker.NodeID,
		Concurrency: cfg.Worker.Concurrency,
		PollDelay:   cfg.Worker.PollDelay,
	}, *logger)
	sweeper := sweepers.NewTaskQueueSweeper(queue, logger, cfg.Worker.SweepInterval, cfg.Worker.OrphanTimeout)
	cleanup := jobs.NewCleanupManager(pool, queue, store, jobs.CleanupConfig{
		Interval:          cfg.Cleanup.Interval,
		TaskRetentionDays: cfg.Cleanup.TaskRetentionDays,
		ArchiveRetention:  cfg.Cleanup.ArchiveRetention,
		Enabled:           cfg.Cleanup.Enabled,
	}, logger)

	// Tasks left IN_PROGRESS by a previous run of this node are recovered by
	// the first sweep.
	if _, err := sweeper.RecoverOrphanedTasks(ctx); err != nil {
		logger.Warn().Err(err).Msg("Startup orphan sweep failed")
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(ctx, handlers.New(handlers.Deps{
		Pool:     pool,
		Queue:    queue,
		Publish:  publishService,
		Resolver: res,
		Diff:     diff.NewEngine(diff.NewDBStore(pool), recorder),
		Storage:  store,
		Metrics:  recorder,
		Logger:   *logger,
	}), handlers.RouterOptions{
		APIKey: cfg.Server.APIKey,
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.Burst,
			IdleTTL:           cfg.RateLimit.IdleTTL,
		},
		Logger: logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	worker.Start(ctx)
	cleanup.Start()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		worker.Stop()
		cleanup.Stop()
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// newCache builds the resolver cache backend. The returned func releases it.
func newCache(ctx context.Context, cfg config.ResolverConfig, logger *zerolog.Logger) (resolver.Cache, func(), error) {
	if cfg.Backend != "redis" {
		return resolver.NewMemoryCache(), func() {}, nil
	}
	rdb, err := resolver.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("Resolver cache on redis")
	return resolver.NewRedisCache(rdb, *logger), func() { closeRedis(rdb, logger) }, nil
}

func closeRedis(rdb *redis.Client, logger *zerolog.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Warn().Err(err).Msg("Redis close failed")
	}
}

func newAuditSink(cfg config.AuditConfig, logger *zerolog.Logger) audit.Sink {
	if cfg.Sink == "kafka" {
		logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("Audit entries go to kafka")
		return audit.NewKafkaSink(audit.KafkaConfig{
			Brokers:      cfg.Brokers,
			Topic:        cfg.Topic,
			WriteTimeout: cfg.WriteTimeout,
		})
	}
	return audit.NewLogSink(*logger)
}

func version(cfg *config.Config) string {
	if cfg.Telemetry.ServiceVersion != "" {
		return cfg.Telemetry.ServiceVersion
	}
	return "dev"
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "catalog-service").Logger()
	return &logger
}
