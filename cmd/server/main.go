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

	"adpivot/internal/delivery"
	"adpivot/internal/delivery/middleware"
	"adpivot/internal/domain"
	"adpivot/internal/infrastructure"
	"adpivot/internal/pivot"
	"adpivot/internal/usecase"
	"adpivot/pkg/config"
	"adpivot/pkg/logger"
	"adpivot/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("Starting server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer)

	client := infrastructure.NewHTTPClient(infrastructure.HTTPClientConfig{
		AdsURL:             cfg.Upstream.URL,
		Member:             cfg.Upstream.Member,
		SinkURL:            cfg.Sink.URL,
		SinkSecret:         cfg.Sink.Secret,
		Timeout:            cfg.Upstream.RequestTimeout,
		InsecureTLS:        cfg.Upstream.InsecureTLS,
		RateLimitPerSecond: cfg.Upstream.RateLimitPerSecond,
		RateLimitBurst:     cfg.Upstream.RateLimitBurst,
	}, log, m)

	cache, redisClient, err := newAdCache(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize ads cache")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var exporter domain.ExportClient
	if cfg.Sink.URL != "" {
		exporter = client
	}

	engine := pivot.New(
		pivot.WithCTRPercent(cfg.Pivot.CTRPercent),
		pivot.WithTopN(cfg.Pivot.TopN),
		pivot.WithShowMore(true),
	)

	loader := usecase.NewAdLoader(client, cache, cfg.Cache.TTL, cfg.Upstream.DefaultQuery, log, m)
	service := usecase.NewPivotService(loader, engine, exporter, log, m)

	if cache != nil && len(cfg.Upstream.WarmPlatforms) > 0 {
		go warmCache(ctx, loader, cfg.Upstream.WarmPlatforms, log)
	}

	rateLimiter := middleware.NewRateLimiter(float64(cfg.API.RateLimitPerSecond), cfg.API.RateLimitBurst, log)

	gin.SetMode(gin.ReleaseMode)
	router := delivery.NewHTTPRouter(
		delivery.NewHTTPHandlers(service, log),
		log,
		m,
		prometheus.DefaultGatherer,
		rateLimiter,
		cfg.Upstream.RequestTimeout+5*time.Second,
	).SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server error")
		}
	}()

	// Per-IP limiter cleanup
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rateLimiter.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	cancel()

	log.Info("Server stopped")
}

// newAdCache builds the CACHE_BACKEND cache. The redis client is returned
// for closing; a nil cache disables caching.
func newAdCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.AdCache, *redis.Client, error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		client, err := infrastructure.NewRedisClient(pingCtx, infrastructure.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return infrastructure.NewRedisAdCache(client, log), client, nil
	case config.CacheNone:
		log.Info("Ads cache disabled")
		return nil, nil, nil
	default:
		return infrastructure.NewMemoryAdCache(log), nil, nil
	}
}

func warmCache(ctx context.Context, loader *usecase.AdLoader, platforms []string, log *logger.Logger) {
	params := make([]domain.FetchParams, 0, len(platforms))
	for _, platform := range platforms {
		params = append(params, loader.Params("", platform))
	}

	n, err := loader.Warm(ctx, params...)
	if err != nil {
		log.WithError(err).WithField("loaded", n).Warn("Ads cache warm-up incomplete")
		return
	}
	log.WithField("loaded", n).Info("Ads cache warmed")
}
