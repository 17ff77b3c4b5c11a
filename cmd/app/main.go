package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bot-loja/internal/cache"
	"bot-loja/internal/config"
	"bot-loja/internal/convo"
	"bot-loja/internal/handlers"
	"bot-loja/internal/httpserver"
	"bot-loja/internal/logging"
	"bot-loja/internal/metrics"
	"bot-loja/internal/pay"
	"bot-loja/internal/shop"
	"bot-loja/internal/store"
	"bot-loja/internal/wa"
	"bot-loja/internal/wallet"
	"bot-loja/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting bot-loja", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	st, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	var redisClient *cache.Redis
	if cfg.RedisAddr != "" {
		redisClient = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
		}, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed closing redis", "error", err)
			}
		}()
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("redis ping failed", "error", err)
		}
	}

	gateway := pay.NewStripe(pay.Config{
		APIKey:     cfg.StripeAPIKey,
		Currency:   cfg.Currency,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
		Timeout:    cfg.StripeTimeout,
	}, logger, metricRegistry)

	shopEngine := shop.New(st, nil, metricRegistry, logger)
	walletEngine := wallet.New(st, gateway, wallet.Config{
		MinDeposit:    cfg.MinDepositCents,
		BonusPercent:  cfg.BonusPercent,
		DepositExpiry: cfg.DepositExpiry,
	}, metricRegistry, logger)

	waClient, err := wa.New(ctx, wa.Config{
		StorePath: cfg.WAStorePath,
		LogLevel:  cfg.WALogLevel,
		Metrics:   metricRegistry,
	}, logger)
	if err != nil {
		return fmt.Errorf("init whatsapp client: %w", err)
	}
	defer waClient.Close()

	convoEngine := convo.New(st, shopEngine, walletEngine, waClient, redisClient, convo.EngineConfig{
		SupportURL: cfg.SupportURL,
		GroupURL:   cfg.GroupURL,
	}, metricRegistry, logger)
	waClient.SetMessageProcessor(convoEngine)

	webhookProcessor := handlers.NewStripeWebhookProcessor(walletEngine, waClient, cfg.AdminJID, logger)
	webhookHandler := pay.NewWebhookHandler(logger, metricRegistry, cfg.StripeWebhookSecret, webhookProcessor)

	go walletEngine.RunExpirySweep(ctx, cfg.SweepInterval)

	waCtx, waCancel := context.WithCancel(ctx)
	defer waCancel()
	go func() {
		if err := waClient.Start(waCtx); err != nil {
			logger.Error("whatsapp client stopped", "error", err)
			stop()
		}
	}()

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, httpserver.Handlers{
		StripeWebhook: webhookHandler,
	}, cfg.PublicBasePath)
	httpSrv.SetDependencies(httpserver.Dependencies{
		Store:      st,
		AdminToken: cfg.AdminToken,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
