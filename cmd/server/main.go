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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/bankledger/internal/adapter/http"
	"github.com/iho/bankledger/internal/adapter/http/handler"
	"github.com/iho/bankledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/bankledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/bankledger/internal/adapter/repository/redis"
	"github.com/iho/bankledger/internal/infrastructure/auth"
	"github.com/iho/bankledger/internal/infrastructure/config"
	"github.com/iho/bankledger/internal/infrastructure/eventpublisher"
	"github.com/iho/bankledger/internal/infrastructure/locking"
	"github.com/iho/bankledger/internal/infrastructure/logger"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
	"github.com/iho/bankledger/internal/infrastructure/postgres"
	"github.com/iho/bankledger/internal/infrastructure/redis"
	"github.com/iho/bankledger/internal/infrastructure/scheduler"
	"github.com/iho/bankledger/internal/usecase"
	"github.com/iho/bankledger/migrations"
)

const limiterIdle = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	ctx = log.WithContext(ctx)

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
	log.Info().Msg("connected to postgres")

	if cfg.MigrateOnStart {
		if err := postgres.NewMigrator(migrations.FS, log).Up(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		log.Info().Msg("connected to redis")
	}

	retrier := postgresRepo.NewRetrier()
	locks, err := newLockManager(cfg, redisClient, usecase.MaxDecisionHold(retrier.MaxAttempts()))
	if err != nil {
		return err
	}

	m := metrics.New()

	// Repositories
	txManager := postgresRepo.NewTxManager(pool, cfg.DatabaseLockTimeout)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	txRepo := postgresRepo.NewTransactionRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	var banks usecase.BankDirectory = postgresRepo.NewBankRepository(pool)
	if redisClient != nil {
		banks = redisRepo.NewBankCache(redisClient, banks, cfg.BankCacheTTL)
	}
	numbers := postgresRepo.NewSequenceNumberGenerator()
	idGen := postgresRepo.NewULIDGenerator()

	// Use cases
	accountUC := usecase.NewAccountUseCase(txManager, accountRepo, outboxRepo, auditRepo, banks, numbers, locks, retrier, idGen, m)
	intakeUC := usecase.NewIntakeUseCase(txManager, accountRepo, txRepo, outboxRepo, idGen, m)
	approvalUC := usecase.NewApprovalUseCase(txManager, accountRepo, txRepo, outboxRepo, auditRepo, locks, retrier, idGen, m,
		usecase.ApprovalConfig{
			CreditRetryAttempts: cfg.CreditRetryAttempts,
			CreditRetryInterval: cfg.CreditRetryInterval,
		})
	queryUC := usecase.NewQueryUseCase(accountRepo, txRepo, banks)

	// Background workers
	publisher, closePublisher := newPublisher(cfg, log)
	defer closePublisher()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	events := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  publisher,
		Logger:     log,
		Metrics:    m,
		BatchSize:  cfg.EventBatchSize,
		Interval:   cfg.EventPublishInterval,
	})
	go func() {
		if err := events.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	jobs := scheduler.New(approvalUC, outboxRepo, m, log, scheduler.Config{
		FaultSweepSchedule:    cfg.FaultSweepSchedule,
		OutboxCleanupSchedule: cfg.OutboxCleanupSchedule,
		OutboxRetention:       cfg.OutboxRetention,
	})
	if err := jobs.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() { <-jobs.Stop().Done() }()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	go sweepLimiters(workerCtx, rateLimiter, log)

	// HTTP
	checks := map[string]handler.Pinger{"postgres": pool.Ping}
	var idempotency usecase.IdempotencyStore
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		idempotency = redisRepo.NewIdempotencyStore(redisClient)
	}

	routerCfg := httpAdapter.RouterConfig{
		AccountHandler:     handler.NewAccountHandler(accountUC, queryUC),
		TransactionHandler: handler.NewTransactionHandler(intakeUC, approvalUC, queryUC),
		TransferHandler:    handler.NewTransferHandler(intakeUC, approvalUC, queryUC),
		DashboardHandler:   handler.NewDashboardHandler(queryUC),
		HealthHandler:      handler.NewHealthHandler(checks),
		IdempotencyStore:   idempotency,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		RateLimiter:        rateLimiter,
		MetricsHandler:     promhttp.Handler(),
		Logger:             log,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
	}
	if cfg.AuthEnabled {
		routerCfg.TokenVerifier = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration, cfg.JWTIssuer)
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Bool("auth", cfg.AuthEnabled).Str("locks", cfg.LockBackend).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// newLockManager picks the account lock backend. Redis locks are needed
// once more than one replica serves traffic; their expiry is raised to
// maxHold so a key cannot lapse while a decision still runs under it.
func newLockManager(cfg *config.Config, client *goredis.Client, maxHold time.Duration) (usecase.LockManager, error) {
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		if client == nil {
			return nil, errors.New("LOCK_BACKEND=redis requires REDIS_URL")
		}
		opts := redisRepo.DefaultLockOptions()
		opts.Wait = cfg.LockWaitTimeout
		if cfg.LockExpiry > 0 {
			opts.Expiry = cfg.LockExpiry
		}
		opts.Expiry = max(opts.Expiry, maxHold)
		return redisRepo.NewLockManager(client, opts), nil
	case config.LockBackendMemory, "":
		return locking.NewKeyedLocker(cfg.LockWaitTimeout), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

// newPublisher returns the outbox sink and its closer.
func newPublisher(cfg *config.Config, log zerolog.Logger) (eventpublisher.Publisher, func()) {
	if cfg.EventPublisher != config.PublisherAMQP {
		return eventpublisher.NewLogPublisher(log), func() {}
	}

	p := eventpublisher.NewAMQPPublisher(eventpublisher.AMQPConfig{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
		Logger:   log,
	})
	return p, func() {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Msg("close amqp publisher")
		}
	}
}

func sweepLimiters(ctx context.Context, rl *middleware.RateLimiter, log zerolog.Logger) {
	ticker := time.NewTicker(limiterIdle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.CleanupLimiters(limiterIdle); n > 0 {
				log.Debug().Int("removed", n).Msg("rate limiters cleaned up")
			}
		}
	}
}
