package domain

// EmailStatus is the canonical delivery state of a sent email.
type EmailStatus string

const (
	StatusScheduled        EmailStatus = "SCHEDULED"
	StatusSent             EmailStatus = "SENT"
	StatusDelivered        EmailStatus = "DELIVERED"
	StatusDeliveryDelayed  EmailStatus = "DELIVERY_DELAYED"
	StatusOpened           EmailStatus = "OPENED"
	StatusClicked          EmailStatus = "CLICKED"
	StatusBounced          EmailStatus = "BOUNCED"
	StatusComplained       EmailStatus = "COMPLAINED"
	StatusRejected         EmailStatus = "REJECTED"
	StatusRenderingFailure EmailStatus = "RENDERING_FAILURE"
)

// statusRank is the priority order used to resolve concurrent or out-of-order
// status updates. A higher rank wins. emails.latest_status_rank is generated
// from the same table in the schema so the conditional update can compare
// ranks in a single statement.
var statusRank = map[EmailStatus]int{
	StatusScheduled:        1,
	StatusSent:             2,
	StatusDelivered:        3,
	StatusDeliveryDelayed:  4,
	StatusOpened:           5,
	StatusClicked:          6,
	StatusBounced:          7,
	StatusComplained:       8,
	StatusRejected:         9,
	StatusRenderingFailure: 10,
}

// Rank returns the priority rank of s, or 0 for an unset or unknown status.
func (s EmailStatus) Rank() int { return statusRank[s] }

// MessageClass segments usage aggregates.
type MessageClass string

const (
	ClassMarketing     MessageClass = "MARKETING"
	ClassTransactional MessageClass = "TRANSACTIONAL"
)

// ClassFor returns MARKETING for campaign emails and TRANSACTIONAL otherwise.
func ClassFor(campaignID string) MessageClass {
	if campaignID != "" {
		return ClassMarketing
	}
	return ClassTransactional
}

type UnsubscribeReason string

const (
	ReasonBounced    UnsubscribeReason = "BOUNCED"
	ReasonComplained UnsubscribeReason = "COMPLAINED"
)

// WebhookEventKind is the event name delivered to external webhook consumers.
type WebhookEventKind string

const (
	WebhookEmailSent       WebhookEventKind = "EMAIL_SENT"
	WebhookEmailDelivered  WebhookEventKind = "EMAIL_DELIVERED"
	WebhookEmailOpened     WebhookEventKind = "EMAIL_OPENED"
	WebhookEmailClicked    WebhookEventKind = "EMAIL_CLICKED"
	WebhookEmailBounced    WebhookEventKind = "EMAIL_BOUNCED"
	WebhookEmailComplained WebhookEventKind = "EMAIL_COMPLAINED"
)

var webhookKinds = map[EmailStatus]WebhookEventKind{
	StatusSent:       WebhookEmailSent,
	StatusDelivered:  WebhookEmailDelivered,
	StatusOpened:     WebhookEmailOpened,
	StatusClicked:    WebhookEmailClicked,
	StatusBounced:    WebhookEmailBounced,
	StatusComplained: WebhookEmailComplained,
}

// WebhookKindFor maps a status to its external event kind. Statuses without a
// public event return ok=false.
func WebhookKindFor(s EmailStatus) (WebhookEventKind, bool) {
	k, ok := webhookKinds[s]
	return k, ok
}
