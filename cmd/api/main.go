package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/surveillance-api/internal/config"
	"github.com/jwalitptl/surveillance-api/internal/handler"
	bookmarkHandler "github.com/jwalitptl/surveillance-api/internal/handler/bookmark"
	"github.com/jwalitptl/surveillance-api/internal/middleware"
	"github.com/jwalitptl/surveillance-api/internal/repository"
	"github.com/jwalitptl/surveillance-api/internal/repository/memory"
	"github.com/jwalitptl/surveillance-api/internal/repository/postgres"
	"github.com/jwalitptl/surveillance-api/internal/repository/redis"
	"github.com/jwalitptl/surveillance-api/internal/router"
	"github.com/jwalitptl/surveillance-api/internal/service/bookmark"
	"github.com/jwalitptl/surveillance-api/pkg/logger"
	"github.com/jwalitptl/surveillance-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})
	log.Logger = appLogger.Zerolog()

	registry := prometheus.NewRegistry()
	var registerer prometheus.Registerer
	if cfg.Monitoring.PrometheusEnabled {
		registerer = registry
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	storeMetrics := metrics.New(cfg.Monitoring.Namespace, registerer)

	// Initialize storage
	kv, err := openStorage(context.Background(), cfg, appLogger)
	if err != nil {
		appLogger.Fatal(err, "failed to open storage backend", "backend", cfg.Storage.Backend)
	}
	defer kv.Close()

	// Initialize services
	sessions := bookmark.NewSessions(cfg.Session.TTL, cfg.Session.CleanupInterval, func() *bookmark.Store {
		return bookmark.NewStore(kv, bookmark.Options{
			Key:     cfg.Storage.Key,
			Logger:  appLogger,
			Metrics: storeMetrics,
		})
	}, storeMetrics)

	// Setup router
	gin.SetMode(gin.ReleaseMode)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins

	r := router.NewRouter(
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        cfg.RateLimit.RequestsPerSecond,
			RateBurst:        cfg.RateLimit.Burst,
			RequestTimeout:   cfg.Server.RequestTimeout,
			CORSConfig:       corsConfig,
			MetricsPrefix:    cfg.Monitoring.Namespace,
			Registerer:       registerer,
		},
		handler.NewHandler(kv, registry),
		bookmarkHandler.NewHandler(sessions),
	)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port, "backend", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
		return
	}

	appLogger.Info("server exited properly")
}

func openStorage(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (repository.KeyValueStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		return redis.NewKeyValueStore(redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, appLogger.Zerolog())
	case config.BackendPostgres:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return postgres.NewKeyValueStore(db), nil
	default:
		return memory.NewKeyValueStore(), nil
	}
}
