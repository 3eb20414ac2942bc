package worker

import (
	"context"
	"fmt"

	"mailevents/internal/domain"
	"mailevents/internal/store"
)

// usageCounts returns the daily usage increments for a status, or ok=false
// for statuses that are not counted.
func usageCounts(status domain.EmailStatus, hardBounce bool) (c store.UsageCounts, ok bool) {
	switch status {
	case domain.StatusSent:
		c.Sent = 1
	case domain.StatusDelivered:
		c.Delivered = 1
	case domain.StatusOpened:
		c.Opened = 1
	case domain.StatusClicked:
		c.Clicked = 1
	case domain.StatusBounced:
		c.Bounced = 1
		if hardBounce {
			c.HardBounced = 1
		}
	case domain.StatusComplained:
		c.Complained = 1
	default:
		return c, false
	}
	return c, true
}

func (p *Processor) recordUsage(ctx context.Context, e event) error {
	counts, ok := usageCounts(e.status, e.hardBounce)
	if !ok {
		return nil
	}

	if err := p.Store.IncrementDailyUsage(ctx, store.DailyUsageIncrement{
		TeamID:   e.email.TeamID,
		DomainID: e.email.DomainKey(),
		Date:     e.now,
		Class:    domain.ClassFor(e.email.CampaignID),
		Counts:   counts,
	}); err != nil {
		return fmt.Errorf("increment daily usage: %w", err)
	}

	// Lifetime counters feed reputation checks and only track the
	// delivered/complained/hard-bounced subset.
	if counts.Delivered == 0 && counts.Complained == 0 && counts.HardBounced == 0 {
		return nil
	}
	if err := p.Store.IncrementCumulatedMetrics(ctx, store.CumulatedMetricsIncrement{
		TeamID:      e.email.TeamID,
		DomainID:    e.email.DomainKey(),
		Delivered:   counts.Delivered,
		Complained:  counts.Complained,
		HardBounced: counts.HardBounced,
	}); err != nil {
		return fmt.Errorf("increment cumulated metrics: %w", err)
	}
	return nil
}
