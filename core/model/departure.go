package model

import (
	"fmt"
	"strings"
	"time"
)

var clockLayouts = []string{"3:04 PM", "3:04PM", "15:04", "3PM", "3 PM"}

// NextDeparture resolves a wall clock time such as "8:30 AM" or "20:30" to
// its next occurrence strictly after now, in now's location.
func NextDeparture(clock string, now time.Time) (time.Time, error) {
	clock = strings.ToUpper(strings.TrimSpace(clock))
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, clock)
		if err != nil {
			continue
		}
		dep := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if !dep.After(now) {
			dep = dep.AddDate(0, 0, 1)
		}
		return dep, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised departure time %q", clock)
}
