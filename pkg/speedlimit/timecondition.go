package speedlimit

import (
	"fmt"
	"regexp"
	"time"
)

// TimeCondition is a daily recurring clock-time window during which a speed
// limit applies (e.g. "7-19" on a supplemental plate means 07:00-19:00).
// Both ends are inclusive. A window whose start is later than its end wraps
// midnight (22-6 is active at 23:00 and at 01:00).
type TimeCondition struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

var timeConditionPattern = regexp.MustCompile(`^\s*(\d{1,2})(?::(\d{2}))?-(\d{1,2})(?::(\d{2}))?\s*$`)

// ParseTimeCondition parses strings like "7-19" or "7:30-19:00".
// Malformed input or out-of-range hours/minutes return ok=false.
func ParseTimeCondition(s string) (TimeCondition, bool) {
	m := timeConditionPattern.FindStringSubmatch(s)
	if m == nil {
		return TimeCondition{}, false
	}

	tc := TimeCondition{
		StartHour: atoi(m[1]),
		EndHour:   atoi(m[3]),
	}
	if m[2] != "" {
		tc.StartMinute = atoi(m[2])
	}
	if m[4] != "" {
		tc.EndMinute = atoi(m[4])
	}

	if tc.StartHour > 23 || tc.EndHour > 23 {
		return TimeCondition{}, false
	}
	if tc.StartMinute > 59 || tc.EndMinute > 59 {
		return TimeCondition{}, false
	}
	return tc, true
}

// IsActive reports whether the window covers the clock time of now.
func (tc TimeCondition) IsActive(now time.Time) bool {
	start := tc.StartHour*60 + tc.StartMinute
	end := tc.EndHour*60 + tc.EndMinute
	cur := now.Hour()*60 + now.Minute()

	if start <= end {
		return cur >= start && cur <= end
	}
	// Overnight window, e.g. 22:00-06:00
	return cur >= start || cur <= end
}

// String renders the canonical form: "H-H" when both minutes are zero,
// "HH:MM-HH:MM" otherwise. ParseTimeCondition(tc.String()) round-trips.
func (tc TimeCondition) String() string {
	if tc.StartMinute == 0 && tc.EndMinute == 0 {
		return fmt.Sprintf("%d-%d", tc.StartHour, tc.EndHour)
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", tc.StartHour, tc.StartMinute, tc.EndHour, tc.EndMinute)
}

// atoi converts digit-only input already validated by the pattern.
func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
