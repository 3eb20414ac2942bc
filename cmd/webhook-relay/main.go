package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailevents/internal/config"
	"mailevents/internal/logging"
	"mailevents/internal/observability"
	"mailevents/internal/webhooks"
)

func main() {
	cfg := config.LoadRelay()
	logging.Init("webhook-relay", cfg.LogFormat, cfg.LogLevel)

	if cfg.ServiceURL == "" {
		slog.Error("WEBHOOK_SERVICE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	rdb, err := webhooks.DialRedis(startupCtx, cfg.RedisURL)
	if err != nil {
		slog.Error("webhook-relay redis not reachable", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	observability.Register(prometheus.DefaultRegisterer)

	relay := webhooks.NewRelay(
		webhooks.NewRedisOutbox(rdb, cfg.WebhookOutboxKey),
		&webhooks.Client{
			BaseURL:       cfg.ServiceURL,
			SigningSecret: cfg.SigningSecret,
			HTTP:          &http.Client{Timeout: 10 * time.Second},
		},
		cfg.RPS, cfg.Burst, cfg.MaxAttempts,
	)

	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}
	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook-relay metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	runErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook-relay starting", "outbox", cfg.WebhookOutboxKey, "concurrency", cfg.Concurrency)
		runErrCh <- relay.Run(ctx, cfg.Concurrency)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-runErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("webhook-relay failed", "err", err)
			os.Exit(1)
		}
	case err := <-metricsErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("webhook-relay metrics server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("webhook-relay shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	select {
	case <-runErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("webhook-relay shutdown timeout waiting for workers")
	}
}
