// Package dates parses the day-month-year strings found in the internship feed
// and computes whole-day deltas between instants.
package dates

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Clock provides the current time. Scoring and mapping take it as a dependency
// so tests can pin "now".
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// ParseDayMonthYear parses DD-MM-YYYY into UTC midnight. It reports false when
// the string does not have exactly three dash separated parts or does not
// describe a real calendar date.
func ParseDayMonthYear(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	iso := fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
	t, err := time.ParseInLocation(time.DateOnly, iso, time.UTC)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// DaysBetween returns the number of whole days from d1 to d2, rounded up.
// When d2 is before d1 the result is 0.
func DaysBetween(d1, d2 time.Time) int {
	diff := d2.Sub(d1)
	if diff <= 0 {
		return 0
	}

	return int(math.Ceil(float64(diff) / float64(day)))
}

// AddDays shifts t by n whole days.
func AddDays(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * day)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
