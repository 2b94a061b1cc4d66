package money

import "time"

// IsBusinessDay reports whether t (interpreted in UTC) falls on a weekday.
// There is no holiday calendar — only Saturday/Sunday are excluded.
func IsBusinessDay(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// AddBusinessDays adds n business days to t, skipping Saturdays and Sundays
// in UTC. n must be non-negative; this is used for dispute resolution
// deadlines (3 business days from creation).
func AddBusinessDays(t time.Time, n int) time.Time {
	cur := t
	for n > 0 {
		cur = cur.AddDate(0, 0, 1)
		if IsBusinessDay(cur) {
			n--
		}
	}
	return cur
}
