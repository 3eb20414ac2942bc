package ses

import (
	"encoding/json"
	"time"
)

// Event is an SES event-publishing notification. Only the sub-object matching
// EventType is populated.
type Event struct {
	EventType string `json:"eventType"`
	Mail      Mail   `json:"mail"`

	Send             *Send             `json:"send,omitempty"`
	Delivery         *Delivery         `json:"delivery,omitempty"`
	Bounce           *Bounce           `json:"bounce,omitempty"`
	Complaint        *Complaint        `json:"complaint,omitempty"`
	Reject           *Reject           `json:"reject,omitempty"`
	Open             *Open             `json:"open,omitempty"`
	Click            *Click            `json:"click,omitempty"`
	RenderingFailure *RenderingFailure `json:"renderingFailure,omitempty"`
	Failure          *RenderingFailure `json:"failure,omitempty"`
	DeliveryDelay    *DeliveryDelay    `json:"deliveryDelay,omitempty"`
}

type Mail struct {
	Timestamp        time.Time           `json:"timestamp"`
	MessageID        string              `json:"messageId"`
	Source           string              `json:"source"`
	SourceArn        string              `json:"sourceArn,omitempty"`
	SendingAccountID string              `json:"sendingAccountId,omitempty"`
	Destination      []string            `json:"destination"`
	HeadersTruncated bool                `json:"headersTruncated,omitempty"`
	Headers          []Header            `json:"headers,omitempty"`
	CommonHeaders    json.RawMessage     `json:"commonHeaders,omitempty"`
	Tags             map[string][]string `json:"tags,omitempty"`
}

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Send struct{}

type Delivery struct {
	Timestamp            time.Time `json:"timestamp"`
	ProcessingTimeMillis int64     `json:"processingTimeMillis"`
	Recipients           []string  `json:"recipients"`
	SMTPResponse         string    `json:"smtpResponse"`
	ReportingMTA         string    `json:"reportingMTA"`
}

const BounceTypePermanent = "Permanent"

type Bounce struct {
	BounceType        string             `json:"bounceType"`
	BounceSubType     string             `json:"bounceSubType"`
	BouncedRecipients []BouncedRecipient `json:"bouncedRecipients"`
	Timestamp         time.Time          `json:"timestamp"`
	FeedbackID        string             `json:"feedbackId"`
	ReportingMTA      string             `json:"reportingMTA,omitempty"`
}

type BouncedRecipient struct {
	EmailAddress   string `json:"emailAddress"`
	Action         string `json:"action,omitempty"`
	Status         string `json:"status,omitempty"`
	DiagnosticCode string `json:"diagnosticCode,omitempty"`
}

type Complaint struct {
	ComplainedRecipients  []Recipient `json:"complainedRecipients"`
	Timestamp             time.Time   `json:"timestamp"`
	FeedbackID            string      `json:"feedbackId"`
	UserAgent             string      `json:"userAgent,omitempty"`
	ComplaintFeedbackType string      `json:"complaintFeedbackType,omitempty"`
	ArrivalDate           string      `json:"arrivalDate,omitempty"`
}

type Recipient struct {
	EmailAddress string `json:"emailAddress"`
}

type Reject struct {
	Reason string `json:"reason"`
}

type Open struct {
	IPAddress string    `json:"ipAddress"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"userAgent"`
}

type Click struct {
	IPAddress string              `json:"ipAddress"`
	Timestamp time.Time           `json:"timestamp"`
	UserAgent string              `json:"userAgent"`
	Link      string              `json:"link"`
	LinkTags  map[string][]string `json:"linkTags,omitempty"`
}

type RenderingFailure struct {
	ErrorMessage string `json:"errorMessage"`
	TemplateName string `json:"templateName"`
}

type DeliveryDelay struct {
	Timestamp         time.Time          `json:"timestamp"`
	DelayType         string             `json:"delayType"`
	ExpirationTime    time.Time          `json:"expirationTime"`
	DelayedRecipients []DelayedRecipient `json:"delayedRecipients"`
	ReportingMTA      string             `json:"reportingMTA,omitempty"`
}

type DelayedRecipient struct {
	EmailAddress   string `json:"emailAddress"`
	Status         string `json:"status"`
	DiagnosticCode string `json:"diagnosticCode"`
}

// IsHardBounce reports whether the event is a permanent bounce.
func (e Event) IsHardBounce() bool {
	return e.Bounce != nil && e.Bounce.BounceType == BounceTypePermanent
}

// ClickLink returns the clicked URL, or "" for non-click events.
func (e Event) ClickLink() string {
	if e.Click == nil {
		return ""
	}
	return e.Click.Link
}
