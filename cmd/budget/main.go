package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/amqp"
	"budget/internal/assistant"
	"budget/internal/auth"
	"budget/internal/backend"
	"budget/internal/cache"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/services"
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(nil)
	if err != nil {
		logger := cli.SetupLogger(config.Load(), log.ComponentApp)
		logger.Error("Configuration validation failed",
			log.NewFields().WithError(err, log.ErrorTypeConfiguration).ToSlice()...)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	if envErr != nil {
		logger.Warn("Ignoring malformed .env file", log.FieldError, envErr)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	// Store
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()

	// Ledger cache
	cacheManager := cache.NewManager(logger)
	defer cacheManager.Stop()

	var ledgerCache cache.Cache[[]core.Entry]
	var cacheStats cache.StatsReporter
	switch cfg.CacheBackend {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		rc := cache.NewRedisCache[[]core.Entry](client, "budget:", cfg.CacheTTL, logger)
		ledgerCache, cacheStats = rc, rc
		logger.Info("Using redis cache", "ttl", cfg.CacheTTL)
	default:
		lru := cache.NewLRUCache[[]core.Entry](cfg.CacheSize, cfg.CacheTTL)
		cacheManager.Register(lru)
		cacheManager.StartCleanup(time.Minute)
		ledgerCache, cacheStats = lru, lru
		logger.Info("Using in-process cache", "ttl", cfg.CacheTTL, "size", cfg.CacheSize)
	}

	// Replace events are optional; without a broker nothing is exported.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		publisher = client
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	tokens := auth.NewTokenIssuer(cfg.SecretKey, cfg.TokenTTL)
	authService, err := auth.NewService(store.Backend, tokens, cfg.BcryptCost, logger)
	if err != nil {
		return err
	}
	entryService := services.NewEntryService(store.Backend, ledgerCache, publisher, logger)

	var completer assistant.Completer
	if cfg.OpenAIAPIKey != "" {
		completer = assistant.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		logger.Info("AI assistant enabled", log.FieldModel, cfg.OpenAIModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set - AI requests will fail")
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		Auth:         authService,
		Entries:      entryService,
		Assistant:    assistant.NewProxy(completer, logger),
		Health:       store.Backend,
		CacheStats:   cacheStats,
		AuthRateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.AuthRateLimitPerMinute,
			Burst:             cfg.AuthRateLimitBurst,
			CleanupInterval:   time.Minute,
			IdleTTL:           10 * time.Minute,
		},
		TrustedProxies:     cfg.TrustedProxies,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	logger.Info("Starting budget server",
		"port", cfg.Port, log.FieldBackend, cfg.DataBackend, log.FieldOperation, log.OpStartup)

	return cli.Run(ctx, logger, cfg.ShutdownTimeout,
		func(context.Context) error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		srv.Shutdown,
	)
}
