package domain

import "time"

// PeriodWindow computes the calendar-month boundary for a wall-clock
// instant: [first-of-month 00:00:00, last-of-month 23:59:59] UTC. It is
// recomputed per request; a stored balance row whose period disagrees is
// superseded by this window.
func PeriodWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}
