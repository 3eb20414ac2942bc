package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"mailevents/internal/observability"
	"mailevents/internal/store"
)

// applyStatus advances latest_status. The rank comparison happens inside the
// store's conditional update, never here, so concurrent workers cannot
// downgrade an email.
func (p *Processor) applyStatus(ctx context.Context, e event) error {
	applied, err := p.Store.ApplyStatus(ctx, store.StatusUpdate{
		EmailID: e.email.ID,
		Status:  e.status,
		Now:     e.now,
	})
	if err != nil {
		return fmt.Errorf("apply status: %w", err)
	}
	observability.StatusUpdates.WithLabelValues(string(e.status), strconv.FormatBool(applied)).Inc()
	if !applied {
		slog.Debug("status not advanced",
			"email_id", e.email.ID,
			"status", e.status,
			"latest_status", e.email.LatestStatus,
		)
	}
	return nil
}
