package pg

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailevents/internal/domain"
	"mailevents/internal/store"
	"mailevents/internal/util"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) FindEmailBySESID(ctx context.Context, sesEmailID string) (store.Email, bool, error) {
	var e store.Email
	var status string
	row := s.DB.QueryRow(ctx, `
		SELECT id, ses_email_id, team_id, domain_id, COALESCE(campaign_id,''), COALESCE(contact_id,''),
		       COALESCE(latest_status,''), created_at, updated_at
		FROM emails WHERE ses_email_id=$1
	`, sesEmailID)
	err := row.Scan(&e.ID, &e.SESEmailID, &e.TeamID, &e.DomainID, &e.CampaignID, &e.ContactID,
		&status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Email{}, false, nil
		}
		return store.Email{}, false, err
	}
	e.LatestStatus = domain.EmailStatus(status)
	return e, true, nil
}

// ApplyStatus moves latest_status forward in a single conditional statement.
// The write only lands if the new status outranks the stored one, or the
// stored one is unset or SCHEDULED. latest_status_rank is a generated column,
// so it always reflects whatever status is stored. It reports whether the row
// changed.
func (s *Store) ApplyStatus(ctx context.Context, in store.StatusUpdate) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE emails
		SET latest_status=$2, updated_at=$4
		WHERE id=$1
		  AND (latest_status IS NULL OR latest_status='SCHEDULED' OR latest_status_rank < $3)
	`, in.EmailID, string(in.Status), in.Status.Rank(), in.Now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// IncrementDailyUsage seeds the (team, domain, date, type) row with the given
// counts or adds them to the existing row atomically.
func (s *Store) IncrementDailyUsage(ctx context.Context, in store.DailyUsageIncrement) error {
	c := in.Counts
	_, err := s.DB.Exec(ctx, `
		INSERT INTO daily_email_usage (team_id, domain_id, date, type,
			sent, delivered, opened, clicked, bounced, complained, hard_bounced, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
		ON CONFLICT (team_id, domain_id, date, type)
		DO UPDATE SET
			sent         = daily_email_usage.sent + EXCLUDED.sent,
			delivered    = daily_email_usage.delivered + EXCLUDED.delivered,
			opened       = daily_email_usage.opened + EXCLUDED.opened,
			clicked      = daily_email_usage.clicked + EXCLUDED.clicked,
			bounced      = daily_email_usage.bounced + EXCLUDED.bounced,
			complained   = daily_email_usage.complained + EXCLUDED.complained,
			hard_bounced = daily_email_usage.hard_bounced + EXCLUDED.hard_bounced,
			updated_at   = now()
	`, in.TeamID, in.DomainID, util.Day(in.Date), string(in.Class),
		c.Sent, c.Delivered, c.Opened, c.Clicked, c.Bounced, c.Complained, c.HardBounced)
	return err
}

func (s *Store) IncrementCumulatedMetrics(ctx context.Context, in store.CumulatedMetricsIncrement) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO cumulated_metrics (team_id, domain_id, delivered, complained, hard_bounced, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (team_id, domain_id)
		DO UPDATE SET
			delivered    = cumulated_metrics.delivered + EXCLUDED.delivered,
			complained   = cumulated_metrics.complained + EXCLUDED.complained,
			hard_bounced = cumulated_metrics.hard_bounced + EXCLUDED.hard_bounced,
			updated_at   = now()
	`, in.TeamID, in.DomainID, in.Delivered, in.Complained, in.HardBounced)
	return err
}

func (s *Store) HasEmailEvent(ctx context.Context, emailID string, status domain.EmailStatus) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM email_events WHERE email_id=$1 AND status=$2)
	`, emailID, string(status)).Scan(&exists)
	return exists, err
}

func (s *Store) InsertEmailEvent(ctx context.Context, in store.EmailEvent) error {
	b, err := json.Marshal(in.Data)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO email_events (id, email_id, status, data, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, in.ID, in.EmailID, string(in.Status), b, in.CreatedAt)
	return err
}

func (s *Store) GetContact(ctx context.Context, contactID string) (store.Contact, bool, error) {
	var c store.Contact
	var reason string
	err := s.DB.QueryRow(ctx, `
		SELECT id, contact_book_id, email, subscribed, COALESCE(unsubscribe_reason,'')
		FROM contacts WHERE id=$1
	`, contactID).Scan(&c.ID, &c.ContactBookID, &c.Email, &c.Subscribed, &reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Contact{}, false, nil
		}
		return store.Contact{}, false, err
	}
	c.UnsubscribeReason = domain.UnsubscribeReason(reason)
	return c, true, nil
}

// FindContactsByEmail returns every contact with the address across all of
// the team's contact books.
func (s *Store) FindContactsByEmail(ctx context.Context, teamID int64, email string) ([]store.Contact, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT c.id, c.contact_book_id, c.email, c.subscribed, COALESCE(c.unsubscribe_reason,'')
		FROM contacts c
		JOIN contact_books b ON b.id = c.contact_book_id
		WHERE c.email=$1 AND b.team_id=$2
	`, email, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Contact
	for rows.Next() {
		var c store.Contact
		var reason string
		if err := rows.Scan(&c.ID, &c.ContactBookID, &c.Email, &c.Subscribed, &reason); err != nil {
			return nil, err
		}
		c.UnsubscribeReason = domain.UnsubscribeReason(reason)
		out = append(out, c)
	}
	return out, rows.Err()
}

// UnsubscribeContact marks the contact unsubscribed. With a campaign id the
// unsubscribe is also recorded against that campaign. Safe to repeat.
func (s *Store) UnsubscribeContact(ctx context.Context, in store.Unsubscribe) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE contacts SET subscribed=false, unsubscribe_reason=$2, updated_at=$3 WHERE id=$1
	`, in.ContactID, string(in.Reason), in.Now); err != nil {
		return err
	}
	if in.CampaignID != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO campaign_unsubscribes (campaign_id, contact_id, reason, created_at)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (campaign_id, contact_id) DO NOTHING
		`, in.CampaignID, in.ContactID, string(in.Reason), in.Now); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

var campaignCounterSQL = map[domain.EmailStatus]string{
	domain.StatusSent:       `UPDATE campaigns SET sent = sent + 1, updated_at=now() WHERE id=$1`,
	domain.StatusDelivered:  `UPDATE campaigns SET delivered = delivered + 1, updated_at=now() WHERE id=$1`,
	domain.StatusOpened:     `UPDATE campaigns SET opened = opened + 1, updated_at=now() WHERE id=$1`,
	domain.StatusClicked:    `UPDATE campaigns SET clicked = clicked + 1, updated_at=now() WHERE id=$1`,
	domain.StatusBounced:    `UPDATE campaigns SET bounced = bounced + 1, hard_bounced = hard_bounced + $2::int, updated_at=now() WHERE id=$1`,
	domain.StatusComplained: `UPDATE campaigns SET complained = complained + 1, updated_at=now() WHERE id=$1`,
}

// RecordCampaignEvent increments the campaign counter matching status.
// Statuses without a campaign counter are ignored.
func (s *Store) RecordCampaignEvent(ctx context.Context, campaignID string, status domain.EmailStatus, hardBounce bool) error {
	q, ok := campaignCounterSQL[status]
	if !ok {
		return nil
	}
	args := []any{campaignID}
	if status == domain.StatusBounced {
		hard := 0
		if hardBounce {
			hard = 1
		}
		args = append(args, hard)
	}
	_, err := s.DB.Exec(ctx, q, args...)
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }
