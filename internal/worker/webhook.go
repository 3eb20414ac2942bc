package worker

import (
	"context"
	"log/slog"

	"mailevents/internal/domain"
	"mailevents/internal/observability"
	"mailevents/internal/webhooks"
)

// dispatchWebhook hands the status change to the webhook outbox. It never
// fails the job: delivery to consumers is owned by the relay.
func (p *Processor) dispatchWebhook(ctx context.Context, e event) {
	kind, ok := domain.WebhookKindFor(e.status)
	if !ok || p.Webhooks == nil {
		return
	}

	t := webhooks.NewTrigger(e.email.TeamID, kind, webhooks.EmailPayload{
		EmailID: e.email.ID,
		Status:  e.status,
		Data:    e.payload,
	}, e.now)

	defer func() {
		if r := recover(); r != nil {
			observability.WebhookPublish.WithLabelValues("panic").Inc()
			slog.Error("webhook publish panicked", "panic", r, "email_id", e.email.ID, "kind", kind)
		}
	}()
	if err := p.Webhooks.Publish(ctx, t); err != nil {
		observability.WebhookPublish.WithLabelValues("error").Inc()
		slog.Error("webhook publish failed", "err", err, "email_id", e.email.ID, "team_id", e.email.TeamID, "kind", kind)
		return
	}
	observability.WebhookPublish.WithLabelValues("ok").Inc()
}
