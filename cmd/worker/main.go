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
	"github.com/redis/go-redis/v9"

	"mailevents/internal/awsutil"
	"mailevents/internal/config"
	"mailevents/internal/httpserver"
	"mailevents/internal/logging"
	"mailevents/internal/observability"
	sqsqueue "mailevents/internal/queue/sqs"
	"mailevents/internal/store/pg"
	"mailevents/internal/webhooks"
	workerproc "mailevents/internal/worker"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat, cfg.LogLevel)

	// Use a root ctx we can cancel
	ctx, cancel := context.WithCancel(context.Background())

	db, err := pg.NewPool(ctx, cfg.DBConfig)
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	store := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}
	queueReady := awsutil.QueueCheck(sqsClient, cfg.SQSQueueURL)

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()

	if err := db.Ping(startupCtx); err != nil {
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}
	if err := queueReady(startupCtx); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	checks := []httpserver.ReadyzCheck{store.Ping, queueReady}

	// Webhook outbox: Redis when configured (drained by webhook-relay),
	// otherwise an in-process buffer with an embedded relay.
	var outbox webhooks.Outbox
	var relayErrCh chan error
	if cfg.RedisURL != "" {
		rdb, err := webhooks.DialRedis(startupCtx, cfg.RedisURL)
		if err != nil {
			slog.Error("redis not reachable", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		outbox = webhooks.NewRedisOutbox(rdb, cfg.WebhookOutboxKey)
		checks = append(checks, redisCheck(rdb))
	} else if cfg.ServiceURL != "" {
		chOutbox := webhooks.NewChanOutbox(cfg.WebhookOutboxBuffer)
		outbox = chOutbox
		relay := webhooks.NewRelay(chOutbox, &webhooks.Client{
			BaseURL:       cfg.ServiceURL,
			SigningSecret: cfg.SigningSecret,
			HTTP:          &http.Client{Timeout: 10 * time.Second},
		}, cfg.RPS, cfg.Burst, cfg.MaxAttempts)
		relayErrCh = make(chan error, 1)
		go func() {
			slog.Info("worker embedded webhook relay starting")
			relayErrCh <- relay.Run(ctx, 4)
		}()
	} else {
		slog.Warn("no webhook outbox configured, webhook triggers disabled")
	}

	processor := &workerproc.Processor{
		Store:                store,
		Contacts:             store,
		Unsubscriber:         store,
		Campaigns:            store,
		UnsubscribeURLPrefix: workerproc.UnsubscribePrefix(cfg.AppBaseURL),
	}
	if outbox != nil {
		processor.Webhooks = outbox
	}

	consumer := &sqsqueue.Consumer{
		SQS: sqsClient, QueueURL: cfg.SQSQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	healthSrv := &http.Server{Addr: ":" + cfg.Port, Handler: httpserver.HealthOnly(checks...)}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()
	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	// start polling
	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting poll", "queue_url", cfg.SQSQueueURL, "concurrency", cfg.WorkerConcurrency)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.WorkerConcurrency, func(ctx context.Context, job sqsqueue.SESJob) (err error) {
			// A job runs to completion once started; shutdown only stops polling.
			jobCtx, jobCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.JobTimeout)
			defer jobCancel()

			start := time.Now()
			slog.Info("worker job start", "ses_email_id", job.DeliveryID, "event_type", job.Event.EventType)
			defer func() {
				if err != nil {
					slog.Info("worker job finish",
						"ses_email_id", job.DeliveryID,
						"status", "error",
						"duration", time.Since(start),
						"err", err,
					)
				} else {
					slog.Info("worker job finish",
						"ses_email_id", job.DeliveryID,
						"status", "ok",
						"duration", time.Since(start),
					)
				}
			}()
			return processor.Process(jobCtx, job.Event)
		})
	}()

	// shutdown wiring
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("worker poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case err := <-metricsErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(cfg.JobTimeout + 5*time.Second):
		slog.Info("worker shutdown timeout waiting for poll loop")
	}
	if relayErrCh != nil {
		select {
		case <-relayErrCh:
		case <-time.After(5 * time.Second):
			slog.Info("worker shutdown timeout waiting for webhook relay")
		}
	}
}

func redisCheck(rdb *redis.Client) httpserver.ReadyzCheck {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}
