package ses

import (
	"encoding/json"
	"errors"
)

// SNS message types.
const (
	SNSNotification             = "Notification"
	SNSSubscriptionConfirmation = "SubscriptionConfirmation"
	SNSUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

var ErrMissingMessageID = errors.New("ses event has no mail.messageId")

// SNSMessage is the envelope SNS posts to HTTP subscribers.
type SNSMessage struct {
	Type         string `json:"Type"`
	MessageID    string `json:"MessageId"`
	TopicArn     string `json:"TopicArn"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL,omitempty"`
	Timestamp    string `json:"Timestamp"`
}

// ParseBody decodes an inbound hook body. It accepts either an SNS envelope
// or a bare SES event. For SNS control messages the returned event is nil.
func ParseBody(body []byte) (*SNSMessage, *Event, json.RawMessage, error) {
	var probe struct {
		Type      string `json:"Type"`
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, nil, nil, err
	}

	raw := json.RawMessage(body)
	var env *SNSMessage
	if probe.Type != "" {
		env = &SNSMessage{}
		if err := json.Unmarshal(body, env); err != nil {
			return nil, nil, nil, err
		}
		if env.Type != SNSNotification {
			return env, nil, nil, nil
		}
		raw = json.RawMessage(env.Message)
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return env, nil, nil, err
	}
	if ev.Mail.MessageID == "" {
		return env, nil, nil, ErrMissingMessageID
	}
	return env, &ev, raw, nil
}
