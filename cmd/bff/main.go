package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/profile-bff-go/internal/config"
	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/handler"
	"github.com/boddenberg/profile-bff-go/internal/infra/cache"
	"github.com/boddenberg/profile-bff-go/internal/infra/client"
	"github.com/boddenberg/profile-bff-go/internal/infra/observability"
	"github.com/boddenberg/profile-bff-go/internal/infra/resilience"
	"github.com/boddenberg/profile-bff-go/internal/infra/session"
	"github.com/boddenberg/profile-bff-go/internal/port"
	"github.com/boddenberg/profile-bff-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("backend_api_url", cfg.BackendAPIURL),
		zap.String("postal_code_api_url", cfg.PostalCodeAPIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("postal_code_cache_ttl", cfg.PostalCodeCacheTTL),
		zap.Duration("list_cache_ttl", cfg.ListCacheTTL),
		zap.Duration("form_session_ttl", cfg.FormSessionTTL),
		zap.Bool("redis_sessions", cfg.RedisURL != ""),
		zap.Bool("auth_enabled", cfg.AuthJWTSecret != ""),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "profile-bff")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	postalCache := cache.New[*domain.PostalAddress](cfg.PostalCodeCacheTTL)
	defer postalCache.Close()
	listCache := cache.New[any](cfg.ListCacheTTL)
	defer listCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	recordsCB := resilience.NewCircuitBreaker("records", logger, metrics.ObserveBreaker)
	postalCB := resilience.NewCircuitBreaker("postal_code", logger, metrics.ObserveBreaker)
	bulkhead := resilienceCfg.Bulkhead()

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	records := client.NewRecordsClient(httpClient, cfg.BackendAPIURL, recordsCB, resilienceCfg)
	resolver := client.NewPostalCodeClient(httpClient, cfg.PostalCodeAPIURL, postalCB, resilienceCfg)

	// --- Form sessions ---
	var sessions port.SessionStore
	var healthChecks []handler.HealthCheck

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := session.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		store := session.NewRedisStore(rdb, cfg.FormSessionTTL)
		sessions = store
		healthChecks = append(healthChecks, handler.HealthCheck{Name: "redis", Check: store.Health})
		logger.Info("form sessions stored in redis")
	} else {
		sessionCache := cache.New[[]byte](cfg.FormSessionTTL,
			cache.WithObserver[[]byte](metrics.CacheObserver("form_session")),
		)
		defer sessionCache.Close()
		sessions = session.NewMemoryStore(sessionCache)
		logger.Warn("REDIS_URL not set, form sessions kept in process memory")
	}

	// --- Services ---
	postalSvc := service.NewPostalCodeService(resolver, postalCache, bulkhead, metrics, logger)
	directorySvc := service.NewDirectoryService(records, listCache, metrics, logger)
	formSvc := service.NewFormService(sessions, records, directorySvc, postalSvc, cfg.DefaultCountry, metrics, logger)

	// Completed submissions refresh the profile and address tables.
	formSvc.OnSubmitted(func(_ context.Context, r service.SubmitResult) {
		directorySvc.Invalidate(r.CPF)
	})

	// --- Router ---
	runCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	limiter := handler.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	go limiter.Run(runCtx, time.Minute)

	opts := handler.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:    limiter,
		HealthChecks:   healthChecks,
	}
	if cfg.AuthJWTSecret != "" {
		opts.Verifier = service.NewTokenVerifier(cfg.AuthJWTSecret)
	} else {
		logger.Warn("AUTH_JWT_SECRET not set, /v1 routes are unauthenticated")
	}

	router := handler.NewRouter(handler.Services{
		Forms:     formSvc,
		Directory: directorySvc,
		Postal:    postalSvc,
	}, opts, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
