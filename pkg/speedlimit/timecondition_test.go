package speedlimit

import (
	"testing"
	"time"
)

func clockTime(hour, min int) time.Time {
	return time.Date(2025, 6, 15, hour, min, 0, 0, time.UTC)
}

func TestTimeCondition_IsActive_Daytime(t *testing.T) {
	tc := TimeCondition{StartHour: 7, EndHour: 19}

	cases := []struct {
		hour, min int
		want      bool
	}{
		{6, 59, false},
		{7, 0, true},
		{12, 0, true},
		{19, 0, true},
		{19, 1, false},
		{23, 30, false},
	}
	for _, c := range cases {
		if got := tc.IsActive(clockTime(c.hour, c.min)); got != c.want {
			t.Errorf("IsActive(%02d:%02d): got %v, want %v", c.hour, c.min, got, c.want)
		}
	}
}

func TestTimeCondition_IsActive_Overnight(t *testing.T) {
	tc := TimeCondition{StartHour: 22, EndHour: 6}

	cases := []struct {
		hour, min int
		want      bool
	}{
		{23, 0, true},
		{1, 0, true},
		{22, 0, true},
		{6, 0, true},
		{12, 0, false},
		{21, 59, false},
		{6, 1, false},
	}
	for _, c := range cases {
		if got := tc.IsActive(clockTime(c.hour, c.min)); got != c.want {
			t.Errorf("IsActive(%02d:%02d): got %v, want %v", c.hour, c.min, got, c.want)
		}
	}
}

func TestParseTimeCondition(t *testing.T) {
	cases := []struct {
		in   string
		want TimeCondition
		ok   bool
	}{
		{"7-19", TimeCondition{StartHour: 7, EndHour: 19}, true},
		{"7:30-19:00", TimeCondition{StartHour: 7, StartMinute: 30, EndHour: 19}, true},
		{"22-6", TimeCondition{StartHour: 22, EndHour: 6}, true},
		{" 8-20 ", TimeCondition{StartHour: 8, EndHour: 20}, true},
		{"0-23", TimeCondition{EndHour: 23}, true},
		{"24-6", TimeCondition{}, false},
		{"7-25", TimeCondition{}, false},
		{"7:60-19:00", TimeCondition{}, false},
		{"7", TimeCondition{}, false},
		{"abc", TimeCondition{}, false},
		{"", TimeCondition{}, false},
		{"7-19 extra", TimeCondition{}, false},
	}
	for _, c := range cases {
		got, ok := ParseTimeCondition(c.in)
		if ok != c.ok {
			t.Errorf("ParseTimeCondition(%q): ok=%v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("ParseTimeCondition(%q): got %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestTimeCondition_String(t *testing.T) {
	cases := []struct {
		tc   TimeCondition
		want string
	}{
		{TimeCondition{StartHour: 7, EndHour: 19}, "7-19"},
		{TimeCondition{StartHour: 7, StartMinute: 30, EndHour: 19}, "07:30-19:00"},
		{TimeCondition{StartHour: 22, EndHour: 6}, "22-6"},
		{TimeCondition{StartHour: 9, EndHour: 17, EndMinute: 45}, "09:00-17:45"},
	}
	for _, c := range cases {
		if got := c.tc.String(); got != c.want {
			t.Errorf("String(%+v): got %q, want %q", c.tc, got, c.want)
		}
	}
}

func TestTimeCondition_StringRoundTrip(t *testing.T) {
	conditions := []TimeCondition{
		{StartHour: 7, EndHour: 19},
		{StartHour: 7, StartMinute: 30, EndHour: 19},
		{StartHour: 22, EndHour: 6},
		{StartHour: 0, EndHour: 0},
		{StartHour: 23, StartMinute: 59, EndHour: 0, EndMinute: 1},
	}
	for _, tc := range conditions {
		parsed, ok := ParseTimeCondition(tc.String())
		if !ok {
			t.Errorf("round trip %q: parse failed", tc.String())
			continue
		}
		if parsed != tc {
			t.Errorf("round trip %q: got %+v, want %+v", tc.String(), parsed, tc)
		}
	}
}

func TestBoundingBox_Derived(t *testing.T) {
	b := BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 70}

	if got := b.Width(); got != 100 {
		t.Errorf("Width: got %v, want 100", got)
	}
	if got := b.Height(); got != 50 {
		t.Errorf("Height: got %v, want 50", got)
	}
	cx, cy := b.Center()
	if cx != 60 || cy != 45 {
		t.Errorf("Center: got (%v, %v), want (60, 45)", cx, cy)
	}
}
