package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mailevents/internal/domain"
	"mailevents/internal/store"
)

func unsubscribeReason(status domain.EmailStatus, hardBounce bool) (domain.UnsubscribeReason, bool) {
	switch {
	case status == domain.StatusBounced && hardBounce:
		return domain.ReasonBounced, true
	case status == domain.StatusComplained:
		return domain.ReasonComplained, true
	}
	return "", false
}

// cascadeUnsubscribe unsubscribes the email's contact from its campaign, and
// every other contact in the team sharing that address globally.
func (p *Processor) cascadeUnsubscribe(ctx context.Context, e event) error {
	reason, ok := unsubscribeReason(e.status, e.hardBounce)
	if !ok || e.email.ContactID == "" {
		return nil
	}

	contact, found, err := p.Contacts.GetContact(ctx, e.email.ContactID)
	if err != nil {
		return fmt.Errorf("get contact: %w", err)
	}
	if !found {
		return nil
	}

	matches, err := p.Contacts.FindContactsByEmail(ctx, e.email.TeamID, contact.Email)
	if err != nil {
		return fmt.Errorf("find contacts by email: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Unsubscriber.UnsubscribeContact(gctx, store.Unsubscribe{
			ContactID:  contact.ID,
			CampaignID: e.email.CampaignID,
			Reason:     reason,
			Now:        e.now,
		})
	})
	for _, c := range matches {
		if c.ID == contact.ID {
			continue
		}
		contactID := c.ID
		g.Go(func() error {
			return p.Unsubscriber.UnsubscribeContact(gctx, store.Unsubscribe{
				ContactID: contactID,
				Reason:    reason,
				Now:       e.now,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("unsubscribe contacts: %w", err)
	}
	return nil
}
