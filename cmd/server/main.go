package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/pointledger/internal/adapter/http"
	"github.com/iho/pointledger/internal/adapter/http/handler"
	"github.com/iho/pointledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/pointledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/pointledger/internal/adapter/repository/redis"
	"github.com/iho/pointledger/internal/infrastructure/config"
	"github.com/iho/pointledger/internal/infrastructure/eventpublisher"
	"github.com/iho/pointledger/internal/infrastructure/logger"
	"github.com/iho/pointledger/internal/infrastructure/metrics"
	"github.com/iho/pointledger/internal/infrastructure/postgres"
	"github.com/iho/pointledger/internal/infrastructure/redis"
	"github.com/iho/pointledger/internal/infrastructure/scheduler"
	"github.com/iho/pointledger/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger zerolog.Logger) error {
	if cfg.MigrateOnStart {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	appLogger.Info().Msg("connected to postgres")

	// Redis only fronts the ledger's own idempotency check, so the service runs without it.
	var redisClient goredis.UniversalClient
	client, err := redis.NewClient(ctx, cfg.RedisURL, cfg.RedisPingTimeout)
	switch {
	case errors.Is(err, redis.ErrDisabled):
		appLogger.Info().Msg("REDIS_URL not set, idempotency cache disabled")
	case err != nil:
		appLogger.Warn().Err(err).Msg("redis unavailable, idempotency cache disabled")
	default:
		redisClient = client
		defer client.Close()
		appLogger.Info().Msg("connected to redis")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegisterer(reg)

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool).WithLockTimeout(cfg.TxLockTimeout)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	locker := postgresRepo.NewAdvisoryLocker()
	idGen := postgresRepo.NewULIDGenerator()

	// Initialize use cases
	limits := cfg.Limits()
	balanceUC := usecase.NewBalanceUseCase(entryRepo, limits, cfg.Location())
	guard := usecase.NewLimitGuard(balanceUC, locker, limits, usecase.SystemClock{}).WithMetrics(m)
	mode := usecase.IdempotencyMode(cfg.IdempotencyMode)
	appLogger.Info().Str("idempotency_mode", cfg.IdempotencyMode).Msg("idempotency keys configured")

	pointsUC := usecase.NewPointsUseCase(txManager, entryRepo, outboxRepo, locker, guard, idGen).
		WithMetrics(m).
		WithLogger(appLogger).
		WithIdempotencyMode(mode)
	reversalUC := usecase.NewReversalUseCase(txManager, entryRepo, outboxRepo, locker, guard, idGen).
		WithMetrics(m).
		WithLogger(appLogger).
		WithIdempotencyMode(mode).
		WithLimitReversals(cfg.LimitReversals)

	ledgerUC := usecase.NewLedgerUseCase(ledgerRepo)

	if cfg.TxRetryEnabled {
		retrier := postgresRepo.NewRetrier().
			WithLogger(appLogger).
			WithMaxRetries(cfg.TxMaxRetries).
			WithMetrics(m)
		pointsUC.WithRetrier(retrier)
		reversalUC.WithRetrier(retrier)
	}

	// Outbox delivery
	publisher, closePublisher, err := newPublisher(cfg, appLogger)
	if err != nil {
		return err
	}
	defer closePublisher()

	eventPublisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  publisher,
		Logger:     appLogger,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
	})

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		if err := eventPublisher.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)

	sched := scheduler.New(appLogger)
	cleanup := scheduler.NewOutboxCleanup(outboxRepo, cfg.OutboxRetention, m, appLogger)
	if err := sched.Add("outbox_cleanup", cfg.OutboxCleanupSchedule, cleanup.Run); err != nil {
		return err
	}
	if cfg.ConsistencyCheckEnabled() {
		check := scheduler.NewConsistencyCheck(ledgerUC, m, appLogger)
		if err := sched.Add("consistency_check", cfg.ConsistencyCheckSchedule, check.Run); err != nil {
			return err
		}
	}
	if err := sched.Add("ratelimit_sweep", "@every "+cfg.RateLimitIdle.String(), func() {
		if dropped := rateLimiter.Sweep(cfg.RateLimitIdle); dropped > 0 {
			appLogger.Debug().Int("dropped", dropped).Msg("rate limiter swept idle clients")
		}
	}); err != nil {
		return err
	}
	sched.Start()

	// HTTP
	routerCfg := httpAdapter.RouterConfig{
		PointsHandler:  handler.NewPointsHandler(pointsUC, reversalUC),
		UserHandler:    handler.NewUserHandler(balanceUC),
		HealthHandler:  handler.NewHealthHandler(pool, redisClient),
		LedgerHandler:  handler.NewLedgerHandler(ledgerUC),
		IdempotencyTTL: cfg.IdempotencyTTL,
		RateLimiter:    rateLimiter,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         &appLogger,
	}
	if redisClient != nil {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
	}

	server := &http.Server{
		Addr:         serverAddr(cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		appLogger.Info().Msg("shutting down server...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	<-sched.Stop().Done()
	cancelWorkers()
	<-publisherDone

	appLogger.Info().Msg("server stopped")
	return nil
}

// newPublisher returns the AMQP publisher when AMQP_URL is set and a log publisher otherwise.
func newPublisher(cfg *config.Config, appLogger zerolog.Logger) (eventpublisher.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		appLogger.Info().Msg("AMQP_URL not set, outbox events will be logged")
		return eventpublisher.NewLogPublisher(appLogger), func() {}, nil
	}

	publisher, err := eventpublisher.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to amqp: %w", err)
	}

	return publisher, func() {
		if err := publisher.Close(); err != nil {
			appLogger.Warn().Err(err).Msg("failed to close amqp publisher")
		}
	}, nil
}

func serverAddr(port string) string {
	return fmt.Sprintf(":%s", port)
}
