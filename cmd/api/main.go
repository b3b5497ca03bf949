package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-payment-gateway/config"
	"crypto-payment-gateway/internal/adapter/chain"
	httpHandler "crypto-payment-gateway/internal/adapter/http/handler"
	pgStorage "crypto-payment-gateway/internal/adapter/storage/postgres"
	redisStorage "crypto-payment-gateway/internal/adapter/storage/redis"
	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
	"crypto-payment-gateway/internal/scheduler"
	"crypto-payment-gateway/internal/service"
	"crypto-payment-gateway/pkg/logger"

	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Crypto Payment Gateway")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	invoiceRepo := pgStorage.NewInvoiceRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	merchantRepo := pgStorage.NewMerchantRepo(pool)
	storeRepo := pgStorage.NewStoreRepo(pool)
	balanceRepo := pgStorage.NewBalanceRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	webhookRepo := pgStorage.NewWebhookRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	claimStore := redisStorage.NewClaimStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Rate source and cache
	coinGecko := chain.NewCoinGeckoClient(cfg.Rates.BaseURL, cfg.Rates.FetchTimeout)
	rateSvc := service.NewRateService(coinGecko, cfg.Rates.TTL, log)

	// Provider pool: three backends per chain, failover in health order.
	providerPool := chain.NewPool(chain.NewHealthRegistry(), log)
	for _, c := range []domain.Chain{
		domain.ChainBitcoin, domain.ChainEthereum, domain.ChainBSC, domain.ChainTron,
	} {
		providerPool.Register(c, chain.NewQuickNode(cfg.Providers.QuickNode, c, coinGecko))
		providerPool.Register(c, chain.NewNowNodes(cfg.Providers.NowNodes, c, coinGecko))
		providerPool.Register(c, chain.NewGetBlock(cfg.Providers.GetBlock, c, coinGecko))
	}

	// Initialize business services
	sigSvc := service.NewHMACSignatureService()
	invoiceSvc := service.NewInvoiceService(
		invoiceRepo,
		merchantRepo,
		storeRepo,
		rateSvc,
		service.NewStaticAddressDeriver(),
		cfg.Invoice.Expiry,
		decimal.NewFromFloat(cfg.Invoice.BufferPct),
		log,
	)
	ledgerSvc := service.NewLedgerService(
		transactor,
		balanceRepo,
		withdrawalRepo,
		merchantRepo,
		decimal.NewFromFloat(cfg.Fees.GlobalPct),
		log,
	)
	webhookSvc := service.NewWebhookService(
		webhookRepo,
		merchantRepo,
		sigSvc,
		claimStore,
		&http.Client{Timeout: cfg.Webhook.RequestTimeout},
		cfg.Webhook,
		log,
	)
	trackerSvc := service.NewTrackerService(
		invoiceRepo,
		paymentRepo,
		providerPool,
		ledgerSvc,
		webhookSvc,
		cfg.Tracker.BatchLimit,
		cfg.Tracker.ConfirmationCeiling,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		InvoiceSvc:     invoiceSvc,
		LedgerSvc:      ledgerSvc,
		WebhookSvc:     webhookSvc,
		RateSvc:        rateSvc,
		ProviderPool:   providerPool,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// Background jobs: discovery, confirmation refresh, webhook draining.
	jobCtx, cancelJobs := context.WithCancel(ctx)
	sched := scheduler.New(log)
	sched.Add(scheduler.Job{
		Name:     "invoice-poll",
		Interval: cfg.Tracker.PollInterval,
		Timeout:  cfg.Tracker.RunTimeout,
		Run:      trackerSvc.PollInvoices,
	})
	sched.Add(scheduler.Job{
		Name:     "confirmation-refresh",
		Interval: cfg.Tracker.RefreshInterval,
		Timeout:  cfg.Tracker.RunTimeout,
		Run:      trackerSvc.RefreshConfirmations,
	})
	sched.Add(scheduler.Job{
		Name:     "webhook-drain",
		Interval: cfg.Webhook.DrainInterval,
		Timeout:  cfg.Tracker.RunTimeout,
		Run: func(ctx context.Context) error {
			_, err := webhookSvc.DrainDue(ctx, cfg.Webhook.DrainLimit)
			return err
		},
	})
	sched.Start(jobCtx)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	cancelJobs()
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
