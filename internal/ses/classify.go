package ses

import (
	"errors"
	"fmt"

	"mailevents/internal/domain"
)

var ErrUnknownEventType = errors.New("unknown ses event type")

// Provider event types.
const (
	EventSend             = "Send"
	EventDelivery         = "Delivery"
	EventBounce           = "Bounce"
	EventComplaint        = "Complaint"
	EventReject           = "Reject"
	EventOpen             = "Open"
	EventClick            = "Click"
	EventRenderingFailure = "Rendering Failure"
	EventDeliveryDelay    = "DeliveryDelay"
)

type classification struct {
	status  domain.EmailStatus
	payload func(Event) any
}

var classifications = map[string]classification{
	EventSend:      {domain.StatusSent, func(e Event) any { return e.Send }},
	EventDelivery:  {domain.StatusDelivered, func(e Event) any { return e.Delivery }},
	EventBounce:    {domain.StatusBounced, func(e Event) any { return e.Bounce }},
	EventComplaint: {domain.StatusComplained, func(e Event) any { return e.Complaint }},
	EventReject:    {domain.StatusRejected, func(e Event) any { return e.Reject }},
	EventOpen:      {domain.StatusOpened, func(e Event) any { return e.Open }},
	EventClick:     {domain.StatusClicked, func(e Event) any { return e.Click }},
	EventRenderingFailure: {domain.StatusRenderingFailure, func(e Event) any {
		// configuration sets publish this under "failure"
		if e.RenderingFailure != nil {
			return e.RenderingFailure
		}
		return e.Failure
	}},
	EventDeliveryDelay: {domain.StatusDeliveryDelayed, func(e Event) any { return e.DeliveryDelay }},
}

// Classify maps an event to its canonical status and the event-specific payload.
// The payload is a typed pointer (e.g. *Bounce) and may be nil when the
// provider omitted the sub-object.
func Classify(e Event) (domain.EmailStatus, any, error) {
	c, ok := classifications[e.EventType]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}
	return c.status, c.payload(e), nil
}
