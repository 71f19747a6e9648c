// Package main is the entry point for the OpenStage API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/openstage/internal/api"
	"github.com/onnwee/openstage/internal/audit"
	"github.com/onnwee/openstage/internal/config"
	"github.com/onnwee/openstage/internal/health"
	lk "github.com/onnwee/openstage/internal/livekit"
	"github.com/onnwee/openstage/internal/middleware"
	"github.com/onnwee/openstage/internal/session"
	"github.com/onnwee/openstage/internal/tracing"
)

const serviceName = "openstage-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	if *help {
		fmt.Println("OpenStage API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("configuration error", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing
	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporterType,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	apiMetrics := api.NewMetrics()
	if err := apiMetrics.Register(registry); err != nil {
		logger.Error("failed to register api metrics", "error", err)
		os.Exit(1)
	}

	// LiveKit clients are long-lived and shared across requests.
	roomService := lk.NewRoomService(cfg.LiveKitWSURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	ingressService := lk.NewIngressService(cfg.LiveKitWSURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	tokenService, err := lk.NewTokenService(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	if err != nil {
		logger.Error("failed to initialize token service", "error", err)
		os.Exit(1)
	}

	sessions := session.NewCodecWithRotation(cfg.SessionSecret, cfg.SessionSecretPrevious)

	// The audit log survives restarts when a database is configured.
	var auditRepo audit.Repository = audit.NewInMemoryRepository()
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		auditRepo = audit.NewPostgresRepository(db)
	}

	server := api.NewServer(logger, roomService, ingressService, tokenService, sessions, auditRepo, apiMetrics, cfg.LiveKitWSURL)

	// Rate limit state lives in Redis when configured, falling back to a
	// per-process in-memory store.
	var rateLimitStore middleware.RateLimitStore
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		store := middleware.NewRedisRateLimitStore(redisClient)
		store.OnError(func(err error) {
			httpMetrics.IncRateLimitRedisErrors()
			logger.Warn("redis rate limit error", "error", err)
		})
		rateLimitStore = store
	} else {
		store := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				store.Cleanup()
			}
		}()
		rateLimitStore = store
	}

	healthConfig := api.HealthHandlersConfig{
		LiveKitChecker: health.NewLiveKitChecker(lk.HTTPURLFromWS(cfg.LiveKitWSURL)),
	}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}
	if db != nil {
		healthConfig.DBChecker = health.NewDBChecker(db)
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)

	mux := api.NewRouter(api.RouterConfig{
		Server:         server,
		Health:         healthHandlers,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		RateLimitStore: rateLimitStore,
		GlobalLimit:    middleware.DefaultGlobalLimit(),
		CreationLimit:  middleware.DefaultCreationLimit(),
		RateLimitKeyFn: middleware.IPKeyFunc(),
	})

	// Apply middleware: RequestID -> Recovery -> Tracing -> Logging -> HTTPMetrics -> CORS.
	// RequestID wraps Recovery so panic logs still carry the request id.
	var handler http.Handler = mux
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if tp.IsEnabled() {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.RequestID(handler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}

	logger.Info("server stopped")
}
