package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/breaker"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/cache"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/httpclient"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/infra/config"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/infra/observability"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/infra/postgres"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/infra/resilience"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/orchestrator"
	httpTransport "github.com/iruldev/eroaming-broadcast-gateway/internal/transport/http"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/transport/http/contract"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/transport/http/handler"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/transport/http/middleware"
)

// pooler is the subset of *postgres.Pool the daemon depends on, so a
// failed startup connection can be swapped for a no-op stand-in without
// ever handing a nil *postgres.Pool to a downstream component.
type pooler interface {
	Ping(context.Context) error
	Close()
	Pool() *pgxpool.Pool
}

// reconnectingDB lazily establishes the database pool and retries on every
// readiness check, so a database that's down at process start doesn't
// block the daemon forever when IGNORE_DB_STARTUP_ERROR is set.
type reconnectingDB struct {
	dsn                string
	poolCfg            postgres.PoolConfig
	ignoreStartupError bool
	log                *slog.Logger

	mu   sync.RWMutex
	pool pooler
}

func newReconnectingDB(dsn string, poolCfg postgres.PoolConfig, ignoreStartupError bool, log *slog.Logger) *reconnectingDB {
	return &reconnectingDB{
		dsn:                dsn,
		poolCfg:            poolCfg,
		ignoreStartupError: ignoreStartupError,
		log:                log,
	}
}

// Ping ensures a pool exists and is healthy, recreating it on failure.
func (r *reconnectingDB) Ping(ctx context.Context) error {
	r.mu.RLock()
	pool := r.pool
	r.mu.RUnlock()

	if pool == nil {
		r.mu.Lock()
		if r.pool == nil {
			newPool, err := postgres.NewPool(ctx, r.dsn, r.poolCfg)
			if err != nil {
				if r.ignoreStartupError {
					r.log.Warn("database pool creation failed but IGNORE_DB_STARTUP_ERROR is set; using no-op pool", slog.Any("error", err))
					r.pool = &noopPooler{}
					r.mu.Unlock()
					return nil
				}
				r.mu.Unlock()
				return err
			}
			r.pool = newPool
		}
		pool = r.pool
		r.mu.Unlock()
	}

	if err := pool.Ping(ctx); err != nil {
		if r.ignoreStartupError {
			r.log.Warn("database ping failed but IGNORE_DB_STARTUP_ERROR is set; using no-op pool", slog.Any("error", err))
			r.mu.Lock()
			r.pool = &noopPooler{}
			r.mu.Unlock()
			return nil
		}
		r.log.Warn("database ping failed", slog.Any("error", err))
		return err
	}

	return nil
}

// Close shuts down the pool if one was ever created.
func (r *reconnectingDB) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}

// Pool returns the current pgxpool.Pool, or nil while running on the
// no-op stand-in.
func (r *reconnectingDB) Pool() *pgxpool.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.pool == nil {
		return nil
	}
	return r.pool.Pool()
}

// noopPooler stands in for a database that could not be reached at
// startup. FindActive and friends still reach a nil *pgxpool.Pool through
// it if actually queried before the database comes back -- the point of
// IGNORE_DB_STARTUP_ERROR is to let the process start and answer /ready
// with "not_ready" rather than to fully virtualize the database away.
type noopPooler struct{}

func (noopPooler) Ping(context.Context) error { return nil }
func (noopPooler) Close()                     {}
func (noopPooler) Pool() *pgxpool.Pool        { return nil }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := contract.SetProblemBaseURL(cfg.ProblemBaseURL); err != nil {
		return fmt.Errorf("failed to set PROBLEM_BASE_URL: %w", err)
	}

	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("broadcast gateway starting",
		slog.Int("port", cfg.Port),
		slog.String("log_level", cfg.LogLevel),
	)

	resilienceCfg := resilience.NewResilienceConfig(cfg)
	if err := resilienceCfg.Validate(); err != nil {
		return fmt.Errorf("invalid resilience configuration: %w", err)
	}

	poolCfg := postgres.PoolConfig{
		MaxConns:        cfg.DBPoolMaxConns,
		MinConns:        cfg.DBPoolMinConns,
		MaxConnLifetime: cfg.DBPoolMaxLifetime,
	}

	db := newReconnectingDB(cfg.DatabaseURL, poolCfg, cfg.IgnoreDBStartupError, logger)
	defer db.Close()

	const startupPingTimeout = 5 * time.Second
	pingCtx, cancelPing := context.WithTimeout(ctx, startupPingTimeout)
	pingErr := db.Ping(pingCtx)
	cancelPing()
	if pingErr != nil {
		return fmt.Errorf("database not reachable at startup: %w", pingErr)
	}
	if db.Pool() != nil {
		logger.Info("database connected")
	} else {
		logger.Warn("starting with database unavailable; partner cache will start empty until /ready succeeds")
	}

	partnerRepo := postgres.NewPartnerRepo(db.Pool(), resilienceCfg)

	partnerCache := cache.New(ctx, partnerRepo,
		cache.WithCapacity(cfg.PartnerCacheCapacity),
		cache.WithTTL(cfg.PartnerCacheTTL),
		cache.WithLogger(logger),
	)

	breakerRegistry := breaker.NewRegistry(logger)
	go breakerRegistry.Run(ctx)
	defer breakerRegistry.Stop()

	metricsReg, httpMetrics := observability.NewMetricsRegistry()
	clientMetrics := httpclient.NewMetrics(metricsReg)

	partnerClient := httpclient.New(breakerRegistry,
		httpclient.WithMetrics(clientMetrics),
		httpclient.WithLogger(logger),
	)

	broadcaster := orchestrator.New(partnerCache, partnerClient,
		orchestrator.WithPoolSize(cfg.BroadcastPoolSize),
		orchestrator.WithDeadline(cfg.BroadcastDeadline),
		orchestrator.WithLogger(logger),
	)

	healthHandler := handler.NewHealthHandler()
	readyHandler := handler.NewReadyHandler(db, logger)
	broadcastHandler := handler.NewBroadcastHandler(broadcaster, logger)

	shutdownCoord := resilience.NewShutdownCoordinator(resilienceCfg.Shutdown,
		resilience.WithShutdownLogger(logger),
	)

	router := httpTransport.NewRouter(httpTransport.RouterConfig{
		Logger:           logger,
		HealthHandler:    healthHandler,
		ReadyHandler:     readyHandler,
		BroadcastHandler: broadcastHandler,
		MaxRequestBytes:  cfg.MaxRequestSize,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
		},
		Metrics:             httpMetrics,
		ShutdownCoordinator: shutdownCoord,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
		MaxHeaderBytes:    cfg.HTTPMaxHeaderBytes,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		// Stop accepting new broadcasts immediately; requests already in
		// flight are allowed to drain before the HTTP server is closed.
		shutdownCoord.InitiateShutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := shutdownCoord.WaitForDrain(shutdownCtx); err != nil {
			logger.Warn("drain period ended before all requests completed", slog.Any("error", err))
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				srv.Close()
				logger.Error("graceful shutdown failed", slog.Any("error", err))
			}
		}()
		wg.Wait()
	}

	logger.Info("server stopped gracefully")
	return nil
}
