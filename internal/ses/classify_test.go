package ses

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailevents/internal/domain"
)

func TestClassifyAllEventTypes(t *testing.T) {
	cases := []struct {
		eventType string
		want      domain.EmailStatus
	}{
		{EventSend, domain.StatusSent},
		{EventDelivery, domain.StatusDelivered},
		{EventBounce, domain.StatusBounced},
		{EventComplaint, domain.StatusComplained},
		{EventReject, domain.StatusRejected},
		{EventOpen, domain.StatusOpened},
		{EventClick, domain.StatusClicked},
		{EventRenderingFailure, domain.StatusRenderingFailure},
		{EventDeliveryDelay, domain.StatusDeliveryDelayed},
	}
	for _, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			got, _, err := Classify(Event{EventType: tc.eventType})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyUnknown(t *testing.T) {
	_, _, err := Classify(Event{EventType: "Foo"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEventType))
}

func TestClassifyPayload(t *testing.T) {
	body := `{
		"eventType": "Bounce",
		"mail": {"messageId": "ses-1", "destination": ["a@example.com"]},
		"bounce": {"bounceType": "Permanent", "bounceSubType": "General",
			"bouncedRecipients": [{"emailAddress": "a@example.com"}]}
	}`
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(body), &ev))

	status, payload, err := Classify(ev)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBounced, status)

	b, ok := payload.(*Bounce)
	require.True(t, ok)
	assert.Equal(t, "General", b.BounceSubType)
	assert.True(t, ev.IsHardBounce())
}

func TestClassifyDistinctPayloadFields(t *testing.T) {
	var delay Event
	require.NoError(t, json.Unmarshal([]byte(`{"eventType":"DeliveryDelay","mail":{"messageId":"m"},
		"deliveryDelay":{"delayType":"MailboxFull"}}`), &delay))
	_, payload, err := Classify(delay)
	require.NoError(t, err)
	assert.Equal(t, "MailboxFull", payload.(*DeliveryDelay).DelayType)

	var rf Event
	require.NoError(t, json.Unmarshal([]byte(`{"eventType":"Rendering Failure","mail":{"messageId":"m"},
		"renderingFailure":{"templateName":"welcome"}}`), &rf))
	_, payload, err = Classify(rf)
	require.NoError(t, err)
	assert.Equal(t, "welcome", payload.(*RenderingFailure).TemplateName)

	var failure Event
	require.NoError(t, json.Unmarshal([]byte(`{"eventType":"Rendering Failure","mail":{"messageId":"m"},
		"failure":{"templateName":"receipt"}}`), &failure))
	_, payload, err = Classify(failure)
	require.NoError(t, err)
	assert.Equal(t, "receipt", payload.(*RenderingFailure).TemplateName)
}

func TestSoftBounceIsNotHard(t *testing.T) {
	ev := Event{EventType: EventBounce, Bounce: &Bounce{BounceType: "Transient"}}
	assert.False(t, ev.IsHardBounce())
	assert.False(t, Event{EventType: EventComplaint}.IsHardBounce())
}

func TestParseBodySNSEnvelope(t *testing.T) {
	inner := `{"eventType":"Open","mail":{"messageId":"ses-9"},"open":{"ipAddress":"1.2.3.4"}}`
	env, _ := json.Marshal(SNSMessage{Type: SNSNotification, MessageID: "sns-1", Message: inner})

	msg, ev, raw, err := ParseBody(env)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NotNil(t, ev)
	assert.Equal(t, "ses-9", ev.Mail.MessageID)
	assert.JSONEq(t, inner, string(raw))
}

func TestParseBodySubscriptionConfirmation(t *testing.T) {
	env, _ := json.Marshal(SNSMessage{Type: SNSSubscriptionConfirmation, SubscribeURL: "https://sns.example/confirm"})

	msg, ev, _, err := ParseBody(env)
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Equal(t, "https://sns.example/confirm", msg.SubscribeURL)
}

func TestParseBodyBareEvent(t *testing.T) {
	msg, ev, _, err := ParseBody([]byte(`{"eventType":"Send","mail":{"messageId":"ses-2"},"send":{}}`))
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, EventSend, ev.EventType)
}

func TestParseBodyMissingMessageID(t *testing.T) {
	_, _, _, err := ParseBody([]byte(`{"eventType":"Send","mail":{}}`))
	assert.ErrorIs(t, err, ErrMissingMessageID)

	_, _, _, err = ParseBody([]byte(`not json`))
	assert.Error(t, err)
}
