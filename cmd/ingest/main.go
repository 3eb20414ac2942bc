package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailevents/internal/awsutil"
	"mailevents/internal/config"
	"mailevents/internal/httpserver"
	"mailevents/internal/logging"
	"mailevents/internal/observability"
	sqsqueue "mailevents/internal/queue/sqs"
)

func main() {
	cfg := config.LoadIngest()
	logging.Init("ingest", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("ingest sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	hook := &httpserver.SESHook{
		Queue: &sqsqueue.Producer{
			SQS:          sqsClient,
			QueueURL:     cfg.SQSQueueURL,
			GroupBuckets: cfg.SQSGroupBuckets,
		},
		HTTP:          &http.Client{Timeout: 5 * time.Second},
		BasicUser:     cfg.BasicUser,
		BasicPassword: cfg.BasicPassword,
	}

	s := httpserver.New()
	hook.Register(s.Mux)
	s.Mux.HandleFunc("/livez", httpserver.Healthz()).Methods(http.MethodGet)
	s.Mux.HandleFunc("/healthz", httpserver.Readyz(2*time.Second,
		awsutil.QueueCheck(sqsClient, cfg.SQSQueueURL),
	)).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}

	go func() {
		slog.Info("ingest metrics listening", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ingest metrics server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("ingest shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("ingest listening", "port", cfg.Port, "queue_url", cfg.SQSQueueURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("ingest server failed", "err", err)
		os.Exit(1)
	}
}
