package util

import (
	"strconv"
	"time"
)

var layouts = []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"}

// ParseTime tries RFC3339, RFC3339Nano, YYYY-MM-DD and unix seconds.
// Returns (t, true) in UTC if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// DayBounds widens [from, to] to whole UTC days. Zero bounds stay zero,
// meaning unbounded on that side.
func DayBounds(from, to time.Time) (time.Time, time.Time) {
	if !from.IsZero() {
		from = from.UTC().Truncate(24 * time.Hour)
	}
	if !to.IsZero() {
		to = to.UTC().Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond)
	}
	return from, to
}
