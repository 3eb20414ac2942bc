package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DBConfig is shared by every binary that talks to Postgres.
type DBConfig struct {
	DBDSN             string `envconfig:"DB_DSN" required:"true"`
	MaxConns          int32  `envconfig:"DB_POOL_MAX_CONNS" default:"20"`
	MinConns          int32  `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	MaxConnLifetime   string `envconfig:"DB_POOL_MAX_CONN_LIFETIME" default:"30m"`
	MaxConnIdleTime   string `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME" default:"5m"`
	HealthCheckPeriod string `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD" default:"30s"`
}

type WorkerConfig struct {
	DBConfig

	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`

	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"200"`
	JobTimeout        time.Duration `envconfig:"JOB_TIMEOUT" default:"30s"`

	// Base URL of the app; clicks on {APP_BASE_URL}/unsubscribe are not
	// counted as campaign clicks.
	AppBaseURL string `envconfig:"APP_BASE_URL" required:"true"`

	// Webhook outbox. Without REDIS_URL triggers go to an in-process buffer
	// drained by an embedded relay.
	RedisURL            string `envconfig:"REDIS_URL"`
	WebhookOutboxKey    string `envconfig:"WEBHOOK_OUTBOX_KEY" default:"webhooks:outbox"`
	WebhookOutboxBuffer int    `envconfig:"WEBHOOK_OUTBOX_BUFFER" default:"1024"`

	WebhookServiceConfig
}

type IngestConfig struct {
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSGroupBuckets    int    `envconfig:"SQS_GROUP_BUCKETS" default:"2000"`

	// Optional basic auth on the SNS endpoint (SNS supports user:pass@ URLs).
	BasicUser     string `envconfig:"INGEST_BASIC_USER"`
	BasicPassword string `envconfig:"INGEST_BASIC_PASSWORD"`
}

type RelayConfig struct {
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	RedisURL         string `envconfig:"REDIS_URL" required:"true"`
	WebhookOutboxKey string `envconfig:"WEBHOOK_OUTBOX_KEY" default:"webhooks:outbox"`
	Concurrency      int    `envconfig:"RELAY_CONCURRENCY" default:"8"`

	WebhookServiceConfig
}

// WebhookServiceConfig describes the downstream webhook fan-out service.
type WebhookServiceConfig struct {
	ServiceURL    string  `envconfig:"WEBHOOK_SERVICE_URL"`
	SigningSecret string  `envconfig:"WEBHOOK_SIGNING_SECRET"`
	RPS           float64 `envconfig:"WEBHOOK_RPS" default:"50"`
	Burst         int     `envconfig:"WEBHOOK_BURST" default:"100"`
	MaxAttempts   int     `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"5"`
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadIngest() IngestConfig {
	var cfg IngestConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadRelay() RelayConfig {
	var cfg RelayConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
