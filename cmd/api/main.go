package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portal_insights_backend/internal/adapters"
	"portal_insights_backend/internal/assistant"
	"portal_insights_backend/internal/assistant/ratelimit"
	"portal_insights_backend/internal/assistant/session"
	"portal_insights_backend/internal/events"
	apphttp "portal_insights_backend/internal/http"
	"portal_insights_backend/internal/http/router"
	"portal_insights_backend/internal/insights"
	"portal_insights_backend/internal/insights/cache"
	"portal_insights_backend/internal/scheduler"
	"portal_insights_backend/migrations"
	"portal_insights_backend/platform/ai"
	"portal_insights_backend/platform/config"
	"portal_insights_backend/platform/db"
	"portal_insights_backend/platform/logger"
	"portal_insights_backend/platform/redisconn"
	"portal_insights_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const housekeepingInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	health := map[string]apphttp.HealthChecker{"database": db.NewPoolAdapter(pool)}

	var redisClient *redis.Client
	if cfg.SnapshotStore == "redis" || cfg.RateLimitStore == "redis" {
		if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
			c, err := redisconn.New(ctx, cfg)
			if err != nil {
				return err
			}
			redisClient = c
			return nil
		}); err != nil {
			log.Error("failed to connect to redis", "error", err)
			panic("failed to connect to redis: " + err.Error())
		}
		defer func() { _ = redisClient.Close() }()
		health["redis"] = redisPinger{redisClient}
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var sweepers []func() int

	var snapshotStore cache.Store
	if cfg.SnapshotStore == "redis" {
		snapshotStore = cache.NewRedis(redisClient, cfg.GetSnapshotCacheTTL())
	} else {
		mem := cache.NewMemory(cfg.GetSnapshotCacheTTL())
		sweepers = append(sweepers, mem.Sweep)
		snapshotStore = mem
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitStore == "redis" {
		limiter = ratelimit.NewRedis(redisClient, cfg.GetRateLimitWindow(), cfg.GetRateLimitMax())
	} else {
		mem := ratelimit.NewMemory(cfg.GetRateLimitWindow(), cfg.GetRateLimitMax())
		sweepers = append(sweepers, mem.Sweep)
		limiter = mem
	}

	sessions := session.NewStore()
	sweepers = append(sweepers, func() int { return sessions.Prune(cfg.GetSessionIdleTTL()) })

	llm, err := ai.NewModel(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize language model", "error", err)
		panic("failed to initialize language model: " + err.Error())
	}

	// ========================================================================
	// Domain Modules
	// ========================================================================

	insightsModule := insights.NewModule(pool, snapshotStore, cfg, eventBus, val, log)

	snapshotProvider := adapters.NewAssistantSnapshotProvider(insightsModule.Service())
	assistantModule, err := assistant.NewModule(assistant.Deps{
		Limiter:      limiter,
		Sessions:     sessions,
		Snapshots:    snapshotProvider,
		Invalidator:  snapshotProvider,
		Records:      adapters.NewAssistantRecordWriter(insightsModule.Repository()),
		Bus:          eventBus,
		LLM:          llm,
		ModelTimeout: cfg.GetLLMTimeout(),
		Links:        cfg,
		Validator:    val,
		Log:          log,
	})
	if err != nil {
		log.Error("failed to initialize assistant module", "error", err)
		panic("failed to initialize assistant module: " + err.Error())
	}

	if deliveryQueue, closeQueue := initDeliveryQueue(cfg, log); deliveryQueue != nil {
		defer closeQueue()
		assistantModule.SetMessageDelivery(adapters.NewAssistantMessageDelivery(deliveryQueue, insightsModule.Repository()))
	}

	go runHousekeeping(ctx, log, sweepers)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: health,
		Modules: []apphttp.Module{
			insightsModule,
			assistantModule,
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initDeliveryQueue(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; queued messages wait for the scheduler sweep")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize delivery queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// runHousekeeping drops expired snapshots, idle limiter windows and idle
// sessions from the in-process stores.
func runHousekeeping(ctx context.Context, log *logger.Logger, sweepers []func() int) {
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		removed := 0
		for _, sweep := range sweepers {
			removed += sweep()
		}
		if removed > 0 {
			log.Debug("housekeeping removed idle entries", "count", removed)
		}
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
