package worker

import (
	"context"
	"fmt"
)

// updateCampaign applies the campaign rollup at most once per (email, status).
// It must run before the current event is appended to the event log.
func (p *Processor) updateCampaign(ctx context.Context, e event) error {
	seen, err := p.Store.HasEmailEvent(ctx, e.email.ID, e.status)
	if err != nil {
		return fmt.Errorf("check email event: %w", err)
	}
	if seen {
		return nil
	}
	if err := p.Campaigns.RecordCampaignEvent(ctx, e.email.CampaignID, e.status, e.hardBounce); err != nil {
		return fmt.Errorf("record campaign event: %w", err)
	}
	return nil
}
