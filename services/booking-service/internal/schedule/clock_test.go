package schedule

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2026-03-02")
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if d.String() != "2026-03-02" {
		t.Fatalf("round trip got %q", d.String())
	}
	if d.Weekday() != time.Monday {
		t.Fatalf("2026-03-02 is a Monday, got %v", d.Weekday())
	}

	for _, bad := range []string{"", "02-03-2026", "2026/03/02", "2026-13-01", "2026-02-30", "tomorrow"} {
		if _, err := ParseDay(bad); err == nil {
			t.Errorf("ParseDay(%q) should fail", bad)
		}
	}
}

func TestDayOrdering(t *testing.T) {
	a, _ := ParseDay("2026-03-02")
	b, _ := ParseDay("2026-03-03")
	if !a.Before(b) {
		t.Fatal("2026-03-02 should be before 2026-03-03")
	}
	if !a.AddDays(1).Equal(b) {
		t.Fatal("AddDays(1) should land on the next day")
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]int{
		"00:00": 0,
		"09:00": 540,
		"09:30": 570,
		"17:00": 1020,
		"23:59": 1439,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseClock(%q) = %d, want %d", in, got, want)
		}
	}

	for _, bad := range []string{"", "9:00:00", "24:00", "12:60", "noon"} {
		if _, err := ParseClock(bad); err == nil {
			t.Errorf("ParseClock(%q) should fail", bad)
		}
	}
}

func TestMinutesToClock(t *testing.T) {
	for _, tc := range []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{540, "09:00"},
		{575, "09:35"},
		{1020, "17:00"},
	} {
		if got := MinutesToClock(tc.in); got != tc.want {
			t.Errorf("MinutesToClock(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
