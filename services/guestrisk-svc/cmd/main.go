package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"guestrisk/api/openapi"
	"guestrisk/pkg/cache"
	"guestrisk/pkg/config"
	"guestrisk/pkg/logger"
	"guestrisk/pkg/metrics"
	"guestrisk/pkg/ratelimit"
	"guestrisk/pkg/server"
	"guestrisk/services/guestrisk-svc/internal/handlers"
	"guestrisk/services/guestrisk-svc/internal/service"
)

func main() {
	// .env опционален, переменные окружения важнее
	_ = godotenv.Load()

	cfg, err := config.LoadWithServiceDefaults("guestrisk-service", 8080)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	if err := metrics.RegisterRuntimeCollector(cfg.Metrics.Namespace, cfg.Metrics.Subsystem); err != nil {
		logger.Warn("Failed to register runtime collector", "error", err)
	}

	// Кэш результатов
	var results *cache.ResultCache
	if cfg.Cache.Enabled {
		c, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Fatal("failed to init cache", "driver", cfg.Cache.Driver, "error", err)
		}
		results = cache.NewResultCache(c, cfg.Cache.DefaultTTL)
		logger.Info("Result cache enabled", "driver", cfg.Cache.Driver, "ttl", cfg.Cache.DefaultTTL)
	}

	// Rate limiting
	var limiter ratelimit.Limiter
	limitCfg := ratelimit.FromConfig(cfg.RateLimit)
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.New(limitCfg)
		if err != nil {
			logger.Fatal("failed to init rate limiter", "backend", cfg.RateLimit.Backend, "error", err)
		}
		logger.Info("Rate limiting enabled",
			"backend", cfg.RateLimit.Backend,
			"strategy", cfg.RateLimit.Strategy,
			"requests", cfg.RateLimit.Requests,
			"window", cfg.RateLimit.Window,
			"trusted_proxies", len(limitCfg.TrustedProxies),
		)
	}

	svc := service.NewGuestRiskService(service.Options{
		Version:    cfg.App.Version,
		Simulation: cfg.Simulation,
		Cache:      results,
		CacheTTL:   cfg.Cache.DefaultTTL,
	})

	router := handlers.NewRouter(handlers.RouterConfig{
		Service:        svc,
		Limiter:        limiter,
		TrustedProxies: limitCfg.TrustedProxies,
		CORS:           cfg.HTTP.CORS,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		DocsPath:       cfg.HTTP.DocsPath,
		Docs:           openapi.MustGetSpec(),
	})

	srv := server.New(cfg, router)

	if results != nil {
		srv.OnShutdown("cache", func(context.Context) error {
			return results.Close()
		})
	}
	if limiter != nil {
		srv.OnShutdown("ratelimit", func(context.Context) error {
			return limiter.Close()
		})
	}

	logger.Info("Starting guest risk service",
		"port", cfg.HTTP.Port,
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
		"default_trials", cfg.Simulation.DefaultTrialCount,
		"max_trials", cfg.Simulation.MaxTrialCount,
	)

	if err := srv.Run(); err != nil {
		logger.Fatal("server failed", "error", err)
	}
}
