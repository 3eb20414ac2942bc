package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewEventID returns a sortable id for event log rows.
func NewEventID() string {
	t := time.Now().UTC()
	return "evt_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
