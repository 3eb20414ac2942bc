package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	IngestRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_requests_total", Help: "SES hook requests by SNS message type"},
		[]string{"type", "status"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ses_enqueue_total", Help: "SQS enqueue results"},
		[]string{"result"},
	)
	SESEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ses_events_total", Help: "Processed SES events"},
		[]string{"event_type", "outcome"},
	)
	ProcessingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "ses_event_processing_seconds", Help: "SES event processing latency"},
	)
	StatusUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "email_status_updates_total", Help: "Conditional status updates"},
		[]string{"status", "applied"},
	)
	WebhookPublish = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_publish_total", Help: "Webhook outbox publish results"},
		[]string{"result"},
	)
	WebhookTrigger = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_trigger_total", Help: "Webhook service trigger outcomes"},
		[]string{"result", "http_status"},
	)
	WebhookLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "webhook_trigger_latency_seconds", Help: "Webhook service trigger latency"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(IngestRequests, Enqueues, SESEvents, ProcessingLatency, StatusUpdates,
		WebhookPublish, WebhookTrigger, WebhookLatency)
}
