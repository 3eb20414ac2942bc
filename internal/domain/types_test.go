package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankOrder(t *testing.T) {
	order := []EmailStatus{
		StatusScheduled, StatusSent, StatusDelivered, StatusDeliveryDelayed, StatusOpened,
		StatusClicked, StatusBounced, StatusComplained, StatusRejected, StatusRenderingFailure,
	}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i].Rank(), order[i-1].Rank(), "%s should outrank %s", order[i], order[i-1])
	}
	assert.Equal(t, 0, EmailStatus("").Rank())
	assert.Equal(t, 0, EmailStatus("FOO").Rank())
}

func TestClassFor(t *testing.T) {
	assert.Equal(t, ClassMarketing, ClassFor("c1"))
	assert.Equal(t, ClassTransactional, ClassFor(""))
}

func TestWebhookKindFor(t *testing.T) {
	k, ok := WebhookKindFor(StatusBounced)
	assert.True(t, ok)
	assert.Equal(t, WebhookEmailBounced, k)

	wire := map[EmailStatus]WebhookEventKind{
		StatusSent:       "EMAIL_SENT",
		StatusDelivered:  "EMAIL_DELIVERED",
		StatusOpened:     "EMAIL_OPENED",
		StatusClicked:    "EMAIL_CLICKED",
		StatusBounced:    "EMAIL_BOUNCED",
		StatusComplained: "EMAIL_COMPLAINED",
	}
	for s, want := range wire {
		got, ok := WebhookKindFor(s)
		assert.True(t, ok, s)
		assert.Equal(t, want, got, s)
	}

	for _, s := range []EmailStatus{StatusScheduled, StatusRejected, StatusRenderingFailure, StatusDeliveryDelayed} {
		_, ok := WebhookKindFor(s)
		assert.False(t, ok, "%s has no webhook kind", s)
	}
}
