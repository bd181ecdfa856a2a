package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/prompt-optimizer/config"
	"github.com/vnmchuo/prompt-optimizer/internal/api"
	"github.com/vnmchuo/prompt-optimizer/internal/auth"
	"github.com/vnmchuo/prompt-optimizer/internal/logging"
	"github.com/vnmchuo/prompt-optimizer/internal/optimizer"
	"github.com/vnmchuo/prompt-optimizer/internal/provider"
	"github.com/vnmchuo/prompt-optimizer/internal/provider/anthropic"
	"github.com/vnmchuo/prompt-optimizer/internal/provider/gemini"
	"github.com/vnmchuo/prompt-optimizer/internal/provider/openai"
	"github.com/vnmchuo/prompt-optimizer/internal/refine"
	"github.com/vnmchuo/prompt-optimizer/internal/registry"
	"github.com/vnmchuo/prompt-optimizer/internal/seeder"
	"github.com/vnmchuo/prompt-optimizer/internal/telemetry"
	"github.com/vnmchuo/prompt-optimizer/internal/usage"
	"github.com/vnmchuo/prompt-optimizer/pkg/ratelimit"
)

var version = "dev"

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		logging.Init(os.Getenv("APP_ENV")).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Init logging
	logger := logging.Init(cfg.AppEnv)

	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	// 3. Init telemetry
	shutdownTracer, err := telemetry.InitTracer(telemetry.ServiceName, version, cfg)
	if err != nil {
		fatal("failed to init tracer", err)
	}
	defer shutdownTracer()
	tracer := otel.GetTracerProvider().Tracer(telemetry.ServiceName)
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// 4. Connect PostgreSQL
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		fatal("failed to connect postgres", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		fatal("failed to ping postgres", err)
	}
	logger.Info("postgres connected")

	// 5. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		fatal("failed to ping redis", err)
	}
	logger.Info("redis connected")

	// 6. Build the provider registry
	catalog, err := registry.ReadCatalog(cfg.CatalogPath)
	if err != nil {
		fatal("failed to read provider catalog", err)
	}
	settings, err := cfg.LoadProviders(catalog)
	if err != nil {
		fatal("invalid provider settings", err)
	}
	reg, err := registry.New(catalog, settings)
	if err != nil {
		fatal("invalid provider catalog", err)
	}
	resolver := registry.NewResolver(reg, cfg, logger)
	logger.Info("provider registry loaded", "providers", len(reg.Providers()))

	// 7. Init provider transports
	clients := provider.NewMux(map[string]provider.Client{
		registry.DialectOpenAI:    openai.New(nil),
		registry.DialectAnthropic: anthropic.New(nil),
		registry.DialectGemini:    gemini.New(nil),
	})

	// 8. Init optimizer and refinement engine
	retry := optimizer.RetryPolicy{MaxRetries: cfg.ProviderMaxRetries}
	svc := optimizer.New(resolver, clients,
		optimizer.WithTimeout(cfg.ProviderTimeout),
		optimizer.WithRetryPolicy(retry),
		optimizer.WithDefaults(cfg.DefaultProvider, cfg.DefaultModel),
		optimizer.WithLogger(logger),
		optimizer.WithTracer(tracer),
		optimizer.WithObserver(metrics),
	)
	engine := refine.NewEngine(svc)

	// 9. Init usage recording
	usageStore := usage.NewPostgresStore(pool)
	recorder := usage.NewRecorder(usageStore, logger, metrics.UsageDropped.Inc)

	// 10. Init auth and rate limiting
	authStore := auth.NewPostgresStore(pool)
	authMiddleware := auth.NewMiddleware(authStore, rdb, logger)
	keys := auth.NewKeys(authStore, rdb, logger)
	limiter := ratelimit.NewLimiter(rdb, cfg.RateLimitRPM)

	// 11. Seed test API key if RUN_SEED=true
	if cfg.RunSeed {
		if err := seeder.SeedTestAPIKey(ctx, authStore, logger); err != nil {
			logger.Warn("seeding test api key failed", "error", err)
		}
	}

	// 12. Init HTTP routes
	handler := api.NewHandler(api.Deps{
		Generator:       svc,
		Refiner:         engine,
		Resolver:        resolver,
		Usage:           usageStore,
		Recorder:        recorder,
		Keys:            keys,
		Limiter:         limiter,
		Tracer:          tracer,
		Production:      cfg.Production(),
		DefaultProvider: cfg.DefaultProvider,
		DefaultModel:    cfg.DefaultModel,
		OnRateLimited:   metrics.RateLimited.Inc,
	})
	router := api.NewRouter(handler, authMiddleware, promhttp.Handler())

	// 13. Graceful shutdown
	// Writes must outlive every provider attempt and the backoff between them.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: retry.Budget(cfg.ProviderTimeout) + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("prompt optimizer starting", "port", cfg.Port, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("server error", err)
		}
	}()

	<-quit
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	recorder.Wait()
	logger.Info("server stopped")
}
