package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"courier/internal/audit"
	"courier/internal/classifier"
	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/dedupe"
	"courier/internal/gateway"
	"courier/internal/logger"
	"courier/internal/queue"
	"courier/internal/tenant"
	"courier/internal/webhook"
	"courier/internal/worker"
	"courier/pkg/bootstrap"
	"courier/pkg/health"
	"courier/pkg/logging"
	"courier/pkg/metrics"
	"courier/pkg/middleware"
	"courier/pkg/ratelimit"
)

const queueSizeInterval = 5 * time.Second

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector

	redis  *redis.Client
	queue  queue.Queue
	worker *worker.Worker
	server *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("webhook-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if a.needsRedis() {
		rdb, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.redis = rdb
	}

	q, err := queue.New(a.Config.Queue, a.redis, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}
	a.queue = q

	metrics.RegisterWebhookMetrics()
	metrics.RegisterWorkerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	store, dedupeBackend := a.buildDedupeStore()
	trail := audit.NewTrail()
	resolver := tenant.NewResolver(a.Config.Tenant)

	var gatewayClient gateway.Client = gateway.NewHTTPClient(a.Config.Gateway, a.Logger)
	if a.Config.CircuitBreaker.Enabled {
		gatewayClient = gateway.NewCircuitBreakerClient(gatewayClient, a.Config.CircuitBreaker)
	}

	a.worker = worker.New(worker.Params{
		Config:     a.Config,
		Queue:      a.queue,
		Classifier: classifier.New(),
		Gateway:    gatewayClient,
		Trail:      trail,
		Logger:     a.Logger,
	})

	healthRegistry := health.NewCheckerRegistry()
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	healthRegistry.Register(health.NewQueueChecker("queue", a.queue.Size))

	handler := webhook.NewHandler(webhook.Params{
		Config:        a.Config,
		Queue:         a.queue,
		Dedupe:        store,
		DedupeBackend: dedupeBackend,
		Resolver:      resolver,
		Trail:         trail,
		Health:        healthRegistry,
		Logger:        a.Logger,
	})

	a.initHTTPServer(handler)
	return nil
}

func (a *App) needsRedis() bool {
	return a.Config.Queue.Backend == "redis" || a.Config.Database.Redis.Host != ""
}

// buildDedupeStore layers the durable store when Redis is available: SetNX
// primary, optional circuit breaker, in-process fallback. Without Redis the
// capped memory set is the only layer.
func (a *App) buildDedupeStore() (dedupe.Store, string) {
	memory := dedupe.NewMemoryStore(a.Config.Dedupe.MaxEntries)
	if a.redis == nil {
		return memory, "memory"
	}

	ttl := a.Config.Dedupe.TTLSeconds
	if ttl <= 0 {
		ttl = constants.DefaultDedupeTTLSeconds
	}

	var primary dedupe.Store = dedupe.NewRedisStore(a.redis, ttl)
	if a.Config.CircuitBreaker.Enabled {
		primary = dedupe.NewCircuitBreakerStore(primary, a.Config.CircuitBreaker)
	}
	return dedupe.NewFallbackStore(primary, memory, a.Logger), "redis"
}

func (a *App) initHTTPServer(handler *webhook.Handler) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.CorrelationIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.MetricsMiddleware())

	if a.Config.RateLimit.Enabled {
		rlConfig := ratelimit.DefaultConfig()
		if a.Config.RateLimit.RPS > 0 {
			rlConfig.RPS = a.Config.RateLimit.RPS
		}
		if a.Config.RateLimit.Burst > 0 {
			rlConfig.Burst = a.Config.RateLimit.Burst
		}
		if a.Config.RateLimit.CleanupInterval > 0 {
			rlConfig.CleanupInterval = time.Duration(a.Config.RateLimit.CleanupInterval) * time.Second
		}
		if a.Config.RateLimit.MaxAge > 0 {
			rlConfig.MaxAge = time.Duration(a.Config.RateLimit.MaxAge) * time.Second
		}
		router.Use(ratelimit.RateLimitMiddleware(rlConfig))
	}

	handler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.worker.Run(gCtx)
	})

	g.Go(func() error {
		a.updateQueueSize(gCtx)
		ticker := time.NewTicker(queueSizeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				a.updateQueueSize(gCtx)
			}
		}
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Errorw("HTTP server shutdown error", "error", err)
		}

		// Closing the queue releases the worker's blocking pop.
		if err := a.queue.Close(); err != nil {
			a.Logger.Errorw("Queue close error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func (a *App) updateQueueSize(ctx context.Context) {
	size, err := a.queue.Size(ctx)
	if err != nil || size < 0 {
		return
	}
	metrics.SetQueueSize(a.Config.Queue.Backend, size)
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "webhook-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down webhook service")

	additionalShutdown := func(ctx context.Context) []error {
		return a.dbConnector.ShutdownDatabases(ctx, a.redis)
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
