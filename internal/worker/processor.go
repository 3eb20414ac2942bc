package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mailevents/internal/domain"
	"mailevents/internal/observability"
	"mailevents/internal/ses"
	"mailevents/internal/store"
	"mailevents/internal/util"
	"mailevents/internal/webhooks"
)

var ErrEmailNotFound = errors.New("email not found for ses message id")

// Outcomes recorded on ses_events_total.
const (
	OutcomeProcessed     = "processed"
	OutcomeUnknownEvent  = "unknown_event"
	OutcomeEmailNotFound = "email_not_found"
	OutcomeDelayRepeat   = "delay_repeat"
	OutcomeError         = "error"

	unknownEventLabel = "unknown"
)

type Store interface {
	FindEmailBySESID(ctx context.Context, sesEmailID string) (store.Email, bool, error)
	ApplyStatus(ctx context.Context, in store.StatusUpdate) (bool, error)
	IncrementDailyUsage(ctx context.Context, in store.DailyUsageIncrement) error
	IncrementCumulatedMetrics(ctx context.Context, in store.CumulatedMetricsIncrement) error
	HasEmailEvent(ctx context.Context, emailID string, status domain.EmailStatus) (bool, error)
	InsertEmailEvent(ctx context.Context, in store.EmailEvent) error
}

type Contacts interface {
	GetContact(ctx context.Context, contactID string) (store.Contact, bool, error)
	FindContactsByEmail(ctx context.Context, teamID int64, email string) ([]store.Contact, error)
}

type Unsubscriber interface {
	UnsubscribeContact(ctx context.Context, in store.Unsubscribe) error
}

type CampaignAnalytics interface {
	RecordCampaignEvent(ctx context.Context, campaignID string, status domain.EmailStatus, hardBounce bool) error
}

type WebhookPublisher interface {
	Publish(ctx context.Context, t webhooks.Trigger) error
}

// Processor folds one SES event into email status, usage counters, contact
// subscriptions, campaign analytics and the event log. Any returned error
// means the event should be retried.
type Processor struct {
	Store        Store
	Contacts     Contacts
	Unsubscriber Unsubscriber
	Campaigns    CampaignAnalytics
	Webhooks     WebhookPublisher

	// Clicks on links with this prefix are the recipient using our own
	// unsubscribe page, e.g. "https://app.example.com/unsubscribe".
	UnsubscribeURLPrefix string

	Now   func() time.Time
	NewID func() string
}

// event carries the per-notification facts every pipeline step needs.
type event struct {
	email      store.Email
	status     domain.EmailStatus
	payload    any
	hardBounce bool
	unsubClick bool
	now        time.Time
}

func (p *Processor) Process(ctx context.Context, ev ses.Event) (err error) {
	start := time.Now()
	outcome := OutcomeProcessed
	// Event types come from the request body; only classified ones become labels.
	eventLabel := unknownEventLabel
	defer func() {
		if err != nil {
			outcome = OutcomeError
		}
		observability.SESEvents.WithLabelValues(eventLabel, outcome).Inc()
		observability.ProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	status, payload, err := ses.Classify(ev)
	if err != nil {
		slog.Warn("dropping ses event", "err", err, "ses_email_id", ev.Mail.MessageID)
		outcome = OutcomeUnknownEvent
		return nil
	}
	eventLabel = ev.EventType

	email, found, err := p.Store.FindEmailBySESID(ctx, ev.Mail.MessageID)
	if err != nil {
		return fmt.Errorf("find email: %w", err)
	}
	if !found {
		slog.Warn("dropping ses event", "err", ErrEmailNotFound, "ses_email_id", ev.Mail.MessageID, "status", status)
		outcome = OutcomeEmailNotFound
		return nil
	}

	e := event{
		email:      email,
		status:     status,
		payload:    payload,
		hardBounce: status == domain.StatusBounced && ev.IsHardBounce(),
		unsubClick: status == domain.StatusClicked && p.isUnsubscribeLink(ev.ClickLink()),
		now:        p.now(),
	}

	// Repeated delay notices carry no new information.
	if email.LatestStatus == domain.StatusDeliveryDelayed && status == domain.StatusDeliveryDelayed {
		outcome = OutcomeDelayRepeat
		return nil
	}

	if err := p.applyStatus(ctx, e); err != nil {
		return err
	}
	if err := p.recordUsage(ctx, e); err != nil {
		return err
	}

	if email.CampaignID != "" && !e.unsubClick {
		if err := p.cascadeUnsubscribe(ctx, e); err != nil {
			return err
		}
		if err := p.updateCampaign(ctx, e); err != nil {
			return err
		}
	}

	if err := p.Store.InsertEmailEvent(ctx, store.EmailEvent{
		ID:        p.newID(),
		EmailID:   email.ID,
		Status:    status,
		Data:      payload,
		CreatedAt: e.now,
	}); err != nil {
		return fmt.Errorf("insert email event: %w", err)
	}

	p.dispatchWebhook(ctx, e)
	return nil
}

// UnsubscribePrefix returns the link prefix of the app's own unsubscribe page.
func UnsubscribePrefix(appBaseURL string) string {
	if appBaseURL == "" {
		return ""
	}
	return strings.TrimRight(appBaseURL, "/") + "/unsubscribe"
}

func (p *Processor) isUnsubscribeLink(link string) bool {
	return p.UnsubscribeURLPrefix != "" && strings.HasPrefix(link, p.UnsubscribeURLPrefix)
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return util.NowUTC()
}

func (p *Processor) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return util.NewEventID()
}
