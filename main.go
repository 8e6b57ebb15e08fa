package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quotaguard/rls-gateway/config"
	"github.com/quotaguard/rls-gateway/engine"
	"github.com/quotaguard/rls-gateway/logger"
	"github.com/quotaguard/rls-gateway/observability"
	"github.com/quotaguard/rls-gateway/pgstore"
	"github.com/quotaguard/rls-gateway/policy"
	"github.com/quotaguard/rls-gateway/ratelimit"
	"github.com/quotaguard/rls-gateway/redisclient"
	"github.com/quotaguard/rls-gateway/router"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Str("version", cfg.AppVersion).Msg("rls gateway starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rdb, err := redisclient.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis init failed")
	}
	if err := rdb.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}
	cancel()
	log.Info().Msg("redis connected")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	store, err := pgstore.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres init failed")
	}
	if err := store.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping failed")
	}
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema setup failed")
	}
	cancel()
	defer store.Close()
	log.Info().Msg("postgres connected, schema ensured")

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	poolStatsDone := startRedisPoolStatsPoller(rdb, metrics, 15*time.Second)

	tracer, err := observability.NewTracer(context.Background(), cfg.OTELServiceName, cfg.OTELExporterEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("tracer init failed")
	}
	if cfg.TracingEnabled() {
		log.Info().Str("endpoint", cfg.OTELExporterEndpoint).Msg("otlp tracing enabled")
	}

	resolver := policy.NewResolver(store)

	eng := engine.New(
		&ratelimit.TokenBucket{Redis: rdb.Client},
		&ratelimit.FixedWindow{Redis: rdb.Client},
		&ratelimit.SlidingWindow{Redis: rdb.Client},
		&ratelimit.Concurrency{Redis: rdb.Client},
		metrics,
	)

	handler := router.New(router.Deps{
		Config:  cfg,
		Logger:  log,
		Redis:   rdb,
		Admin:   store,
		Auth:    resolver,
		Keys:    store,
		Engine:  eng,
		Metrics: metrics,
		Tracer:  tracer,
		Version: cfg.AppVersion,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")
	close(poolStatsDone)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("gateway stopped gracefully")
	}

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown failed")
	}
}

// startRedisPoolStatsPoller periodically samples the Redis connection pool
// and records its in-use count on the redis_pool_in_use gauge. Returns a
// channel that stops the poller when closed.
func startRedisPoolStatsPoller(rdb *redisclient.Client, metrics *observability.Metrics, interval time.Duration) chan struct{} {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := rdb.PoolStats()
				metrics.RedisPoolInUse.Set(float64(stats.TotalConns - stats.IdleConns))
			case <-done:
				return
			}
		}
	}()
	return done
}
