package webhooks

import (
	"time"

	"github.com/google/uuid"

	"mailevents/internal/domain"
)

// Trigger is one webhook notification handed to the dispatch service.
type Trigger struct {
	ID        string                  `json:"id"`
	TeamID    int64                   `json:"teamId"`
	Kind      domain.WebhookEventKind `json:"kind"`
	Payload   EmailPayload            `json:"payload"`
	CreatedAt time.Time               `json:"createdAt"`
	Attempts  int                     `json:"attempts,omitempty"`
}

type EmailPayload struct {
	EmailID string             `json:"emailId"`
	Status  domain.EmailStatus `json:"status"`
	Data    any                `json:"data,omitempty"`
}

func NewTrigger(teamID int64, kind domain.WebhookEventKind, payload EmailPayload, now time.Time) Trigger {
	return Trigger{
		ID:        uuid.NewString(),
		TeamID:    teamID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: now,
	}
}
