package worker

import (
	"context"
	"errors"
	"sync"

	"mailevents/internal/domain"
	"mailevents/internal/store"
	"mailevents/internal/webhooks"
)

var errBoom = errors.New("boom")

type dailyKey struct {
	team, domain int64
	date         string
	class        domain.MessageClass
}

type campaignCounts struct {
	Sent, Delivered, Opened, Clicked, Bounced, HardBounced, Complained int
}

// memStore emulates the Postgres store, including the rank-guarded status
// update, under a single mutex.
type memStore struct {
	mu sync.Mutex

	emails    map[string]*store.Email
	books     map[string]int64
	contacts  map[string]*store.Contact
	daily     map[dailyKey]store.UsageCounts
	cumulated map[[2]int64]store.CumulatedMetricsIncrement
	events    []store.EmailEvent
	campaigns map[string]*campaignCounts
	campUnsub map[[2]string]domain.UnsubscribeReason

	failOn map[string]error
}

// supersedes mirrors the WHERE clause of the Postgres status update.
func supersedes(next, current domain.EmailStatus) bool {
	if current == "" || current == domain.StatusScheduled {
		return true
	}
	return next.Rank() > current.Rank()
}

func newMemStore() *memStore {
	return &memStore{
		emails:    map[string]*store.Email{},
		books:     map[string]int64{},
		contacts:  map[string]*store.Contact{},
		daily:     map[dailyKey]store.UsageCounts{},
		cumulated: map[[2]int64]store.CumulatedMetricsIncrement{},
		campaigns: map[string]*campaignCounts{},
		campUnsub: map[[2]string]domain.UnsubscribeReason{},
		failOn:    map[string]error{},
	}
}

func (m *memStore) addEmail(e store.Email) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails[e.ID] = &e
	if e.CampaignID != "" && m.campaigns[e.CampaignID] == nil {
		m.campaigns[e.CampaignID] = &campaignCounts{}
	}
}

func (m *memStore) addContact(teamID int64, c store.Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[c.ContactBookID] = teamID
	c.Subscribed = true
	m.contacts[c.ID] = &c
}

func (m *memStore) fail(method string) error {
	return m.failOn[method]
}

func (m *memStore) email(id string) store.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.emails[id]
}

func (m *memStore) contact(id string) store.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.contacts[id]
}

func (m *memStore) campaign(id string) campaignCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.campaigns[id]
}

func (m *memStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *memStore) FindEmailBySESID(ctx context.Context, sesEmailID string) (store.Email, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindEmailBySESID"); err != nil {
		return store.Email{}, false, err
	}
	for _, e := range m.emails {
		if e.SESEmailID == sesEmailID {
			return *e, true, nil
		}
	}
	return store.Email{}, false, nil
}

func (m *memStore) ApplyStatus(ctx context.Context, in store.StatusUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ApplyStatus"); err != nil {
		return false, err
	}
	e, ok := m.emails[in.EmailID]
	if !ok || !supersedes(in.Status, e.LatestStatus) {
		return false, nil
	}
	e.LatestStatus = in.Status
	e.UpdatedAt = in.Now
	return true, nil
}

func (m *memStore) IncrementDailyUsage(ctx context.Context, in store.DailyUsageIncrement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("IncrementDailyUsage"); err != nil {
		return err
	}
	k := dailyKey{in.TeamID, in.DomainID, in.Date.UTC().Format("2006-01-02"), in.Class}
	c := m.daily[k]
	c.Sent += in.Counts.Sent
	c.Delivered += in.Counts.Delivered
	c.Opened += in.Counts.Opened
	c.Clicked += in.Counts.Clicked
	c.Bounced += in.Counts.Bounced
	c.Complained += in.Counts.Complained
	c.HardBounced += in.Counts.HardBounced
	m.daily[k] = c
	return nil
}

func (m *memStore) IncrementCumulatedMetrics(ctx context.Context, in store.CumulatedMetricsIncrement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("IncrementCumulatedMetrics"); err != nil {
		return err
	}
	k := [2]int64{in.TeamID, in.DomainID}
	c := m.cumulated[k]
	c.TeamID, c.DomainID = in.TeamID, in.DomainID
	c.Delivered += in.Delivered
	c.Complained += in.Complained
	c.HardBounced += in.HardBounced
	m.cumulated[k] = c
	return nil
}

func (m *memStore) HasEmailEvent(ctx context.Context, emailID string, status domain.EmailStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.EmailID == emailID && ev.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertEmailEvent(ctx context.Context, in store.EmailEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertEmailEvent"); err != nil {
		return err
	}
	m.events = append(m.events, in)
	return nil
}

func (m *memStore) GetContact(ctx context.Context, contactID string) (store.Contact, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[contactID]
	if !ok {
		return store.Contact{}, false, nil
	}
	return *c, true, nil
}

func (m *memStore) FindContactsByEmail(ctx context.Context, teamID int64, email string) ([]store.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Contact
	for _, c := range m.contacts {
		if c.Email == email && m.books[c.ContactBookID] == teamID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) UnsubscribeContact(ctx context.Context, in store.Unsubscribe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UnsubscribeContact"); err != nil {
		return err
	}
	c, ok := m.contacts[in.ContactID]
	if !ok {
		return nil
	}
	c.Subscribed = false
	c.UnsubscribeReason = in.Reason
	if in.CampaignID != "" {
		k := [2]string{in.CampaignID, in.ContactID}
		if _, dup := m.campUnsub[k]; !dup {
			m.campUnsub[k] = in.Reason
		}
	}
	return nil
}

func (m *memStore) RecordCampaignEvent(ctx context.Context, campaignID string, status domain.EmailStatus, hardBounce bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RecordCampaignEvent"); err != nil {
		return err
	}
	c := m.campaigns[campaignID]
	if c == nil {
		return nil
	}
	switch status {
	case domain.StatusSent:
		c.Sent++
	case domain.StatusDelivered:
		c.Delivered++
	case domain.StatusOpened:
		c.Opened++
	case domain.StatusClicked:
		c.Clicked++
	case domain.StatusBounced:
		c.Bounced++
		if hardBounce {
			c.HardBounced++
		}
	case domain.StatusComplained:
		c.Complained++
	}
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	panics   bool
	triggers []webhooks.Trigger
}

func (f *fakePublisher) Publish(ctx context.Context, t webhooks.Trigger) error {
	if f.panics {
		panic("publisher exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.triggers = append(f.triggers, t)
	return nil
}

func (f *fakePublisher) Triggers() []webhooks.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]webhooks.Trigger(nil), f.triggers...)
}
