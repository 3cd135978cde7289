package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/iamzubin/dodo-ledger/internal/api"
	"github.com/iamzubin/dodo-ledger/internal/authgate"
	"github.com/iamzubin/dodo-ledger/internal/config"
	"github.com/iamzubin/dodo-ledger/internal/idempotency"
	"github.com/iamzubin/dodo-ledger/internal/ledger"
	"github.com/iamzubin/dodo-ledger/internal/logging"
	"github.com/iamzubin/dodo-ledger/internal/ratelimit"
	"github.com/iamzubin/dodo-ledger/internal/store"
	"github.com/iamzubin/dodo-ledger/internal/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logging.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	pool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalw("connect to database", "error", err)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		log.Fatalw("apply schema", "error", err)
	}

	idem := idempotency.New(pool)
	engine := ledger.New(pool, idem)
	webhooks := webhook.NewEndpointRegistry(pool)
	gate := authgate.New(pool)
	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)

	server := api.NewServer(pool, engine, webhooks, cfg, log)
	router := api.NewRouter(server, gate, limiter)

	dispatcher := webhook.New(pool, webhook.Config{
		BatchSize:   cfg.WebhookBatchSize,
		MaxAttempts: cfg.WebhookMaxAttempts,
		BaseDelay:   cfg.WebhookBaseDelay,
		HTTPTimeout: cfg.WebhookHTTPTimeout,
		IdleSleep:   cfg.WebhookIdleSleep,
		ErrorSleep:  cfg.WebhookErrorSleep,
	}, log)
	go dispatcher.Run(ctx)

	httpServer := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	go func() {
		log.Infow("service listening", "addr", cfg.ServerAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
}
