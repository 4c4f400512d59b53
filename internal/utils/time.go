package utils

import "time"

// CalendarDate formats a timestamp as the venue-local calendar day.
// Expiry comparisons use this, never a rolling 24h window.
func CalendarDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
