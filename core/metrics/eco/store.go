// Package eco keeps daily per-client tallies of achievable savings.
package eco

import "time"

// Store persists daily savings records. Add merges into the existing
// record of the same client and day.
type Store interface {
	Add(Record) error
	Query(clientID string, start, end time.Time) ([]Record, error)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
