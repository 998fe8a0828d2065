// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"business-suite-billing/internal/config"
	"business-suite-billing/internal/domain/ports/adapter"
	pg "business-suite-billing/internal/infra/db/postgres"
	"business-suite-billing/internal/infra/logging"
	"business-suite-billing/internal/infra/metrics"
	mp "business-suite-billing/internal/infra/payment"
	red "business-suite-billing/internal/infra/redis"
	"business-suite-billing/internal/infra/web"
	"business-suite-billing/internal/infra/worker"
	"business-suite-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		// Logging is configured from the config; fall back to stderr.
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	if err := pg.Migrate(cfg.Database.URL); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional fast path for webhook idempotency) ----
	var appliedCache usecase.AppliedCache
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		appliedCache = red.NewPaymentCache(redisClient, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis.url not set; webhook dedup runs on the database ledger alone")
	}

	// ---- Repositories ----
	codeRepo := pg.NewRedemptionCodeRepo(pool)
	entRepo := pg.NewEntitlementRepo(pool)
	ledgerRepo := pg.NewProcessedPaymentRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Payment provider ----
	// A missing credential keeps the rest of the app serving. Checkout
	// creation fails with a configuration error until the token is set.
	var provider adapter.CheckoutProvider
	if cfg.Payment.AccessToken != "" {
		gw, err := mp.NewMercadoPagoGateway(cfg.Payment.AccessToken, cfg.Server.BaseURL, cfg.Payment.Sandbox, cfg.Payment.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("mercadopago gateway")
		}
		provider = gw
		logger.Info().
			Str("provider", gw.Name()).
			Str("access_token", logging.Redact(cfg.Payment.AccessToken, cfg.Runtime.Dev)).
			Bool("sandbox", cfg.Payment.Sandbox).
			Msg("payment provider ready")
	} else {
		logger.Warn().Msg("payment.access_token not set; checkout is disabled")
	}

	plans := cfg.Plans

	// ---- Use cases ----
	redemptionUC := usecase.NewRedemptionUseCase(codeRepo, entRepo, txManager, logger)
	paymentUC := usecase.NewPaymentIntentUseCase(plans, provider, logger)
	entitlementUC := usecase.NewEntitlementUseCase(entRepo, txManager, cfg.Entitlement.TrialDays, logger)

	var webhookUC *usecase.WebhookUseCase
	if provider != nil {
		webhookUC = usecase.NewWebhookUseCase(provider, entRepo, ledgerRepo, txManager, plans, appliedCache, cfg.Payment.Timeout, logger)
	}

	// ---- Deferred webhook pool ----
	jobs := worker.NewPool(4, logger)
	jobs.Start(ctx)
	defer jobs.Stop()

	// ---- HTTP ----
	sessions := web.NewSessionManager(cfg.Session)
	gate := web.NewGate(sessions, entitlementUC, cfg.Admin.UserIDs, cfg.Admin.APIKey, logger)
	srv := web.NewServer(cfg, sessions, gate, redemptionUC, paymentUC, webhookUC, entitlementUC, jobs, nil, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shCtx, shCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
