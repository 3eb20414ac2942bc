package store

import (
	"time"

	"mailevents/internal/domain"
)

// Email is the sent-message record that delivery events are folded into.
type Email struct {
	ID           string
	SESEmailID   string
	TeamID       int64
	DomainID     *int64
	CampaignID   string
	ContactID    string
	LatestStatus domain.EmailStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DomainKey returns the domain id used in aggregate keys; unset domains map to 0.
func (e Email) DomainKey() int64 {
	if e.DomainID == nil {
		return 0
	}
	return *e.DomainID
}

type StatusUpdate struct {
	EmailID string
	Status  domain.EmailStatus
	Now     time.Time
}

// UsageCounts holds per-status increments for one daily usage row.
type UsageCounts struct {
	Sent        int64
	Delivered   int64
	Opened      int64
	Clicked     int64
	Bounced     int64
	Complained  int64
	HardBounced int64
}

type DailyUsageIncrement struct {
	TeamID   int64
	DomainID int64
	Date     time.Time
	Class    domain.MessageClass
	Counts   UsageCounts
}

type CumulatedMetricsIncrement struct {
	TeamID      int64
	DomainID    int64
	Delivered   int64
	Complained  int64
	HardBounced int64
}

// EmailEvent is an append-only event log entry.
type EmailEvent struct {
	ID        string
	EmailID   string
	Status    domain.EmailStatus
	Data      any
	CreatedAt time.Time
}

type Contact struct {
	ID                string
	ContactBookID     string
	Email             string
	Subscribed        bool
	UnsubscribeReason domain.UnsubscribeReason
}

type Unsubscribe struct {
	ContactID  string
	CampaignID string
	Reason     domain.UnsubscribeReason
	Now        time.Time
}
