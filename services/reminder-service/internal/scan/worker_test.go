package scan

import (
	"testing"
	"time"
)

func TestTomorrowFor(t *testing.T) {
	cases := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), "2026-03-03"},
		// Just before midnight still targets the next calendar day.
		{time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC), "2026-03-03"},
		// Month and year rollovers.
		{time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC), "2026-04-01"},
		{time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC), "2027-01-01"},
		// Leap day.
		{time.Date(2028, 2, 28, 12, 0, 0, 0, time.UTC), "2028-02-29"},
	}
	for _, tc := range cases {
		if got := tomorrowFor(tc.now); got != tc.want {
			t.Errorf("tomorrowFor(%v) = %q, want %q", tc.now, got, tc.want)
		}
	}
}
