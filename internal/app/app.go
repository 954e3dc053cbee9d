package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/winmicro/wallet-engine/internal/api"
	"github.com/winmicro/wallet-engine/internal/api/middleware"
	"github.com/winmicro/wallet-engine/internal/config"
	"github.com/winmicro/wallet-engine/internal/db"
	"github.com/winmicro/wallet-engine/internal/gateway"
	"github.com/winmicro/wallet-engine/internal/idempotency"
	"github.com/winmicro/wallet-engine/internal/observability"
	"github.com/winmicro/wallet-engine/internal/repository"
	"github.com/winmicro/wallet-engine/internal/service"
	"github.com/winmicro/wallet-engine/internal/worker"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	idemStore := idempotency.NewStore(redisClient, pool, cfg.IdempotencyTTL)
	store := repository.NewStore(pool)

	gateways := newGatewayRegistry(cfg)
	settlementSvc := service.NewSettlementService(store, gateways)
	walletSvc := service.NewWalletService(store)
	settingsSvc := service.NewSettingsService(store)
	reconSvc := service.NewReconciliationService(store)

	reconWorker := worker.NewReconciliationWorker(reconSvc).
		WithInterval(cfg.ReconciliationInterval)
	stopRecon := reconWorker.Run(ctx)
	logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconciliationInterval))

	pendingWorker := worker.NewPendingReportWorker(reconSvc).
		WithInterval(cfg.PendingReportInterval)
	stopPending := pendingWorker.Run(ctx)
	logger.Info("pending report worker started", zap.Duration("interval", cfg.PendingReportInterval))

	router := api.NewRouter(cfg, logger, pool, redisClient, idemStore, settlementSvc, walletSvc, settingsSvc, reconSvc)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopRecon()
	stopPending()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newGatewayRegistry(cfg *config.Config) *gateway.Registry {
	registry := gateway.NewRegistry()
	registry.Register(gateway.NewCardUPIAdapter(
		gateway.NewCardUPIHTTPClient(cfg.CardUPI.BaseURL, cfg.CardUPI.APIKey, cfg.CardUPI.Secret),
		cfg.CardUPI.Secret,
	))
	registry.Register(gateway.NewIntlCardAdapter(
		gateway.NewIntlCardHTTPClient(cfg.IntlCard.BaseURL, cfg.IntlCard.Secret),
		cfg.IntlCard.WebhookSecret,
	))
	registry.Register(gateway.NewMobileWalletAdapter(
		gateway.NewMobileWalletHTTPClient(cfg.MobileWallet.BaseURL, cfg.MobileWallet.APIKey, cfg.MobileWallet.Secret),
		cfg.MobileWallet.Secret,
	))
	for currency, provider := range cfg.DefaultProviders {
		registry.SetDefault(currency, provider)
	}
	return registry
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
