package schedule

import (
	"testing"
	"time"
)

func mustDay(t *testing.T, s string) Day {
	t.Helper()
	d, err := ParseDay(s)
	if err != nil {
		t.Fatalf("ParseDay(%q): %v", s, err)
	}
	return d
}

func TestBuildSlotsFullDayGrid(t *testing.T) {
	// Monday 09:00-17:00, 30-minute slots, no buffer: 16 slots.
	win := Window{Open: true, StartMinute: 540, EndMinute: 1020}
	day := mustDay(t, "2026-03-02")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) // the day before

	slots := BuildSlots(win, 30, 0, nil, day, now)
	if len(slots) != 16 {
		t.Fatalf("got %d slots, want 16", len(slots))
	}
	if slots[0].Time != "09:00" {
		t.Errorf("first slot %q, want 09:00", slots[0].Time)
	}
	if slots[15].Time != "16:30" {
		t.Errorf("last slot %q, want 16:30", slots[15].Time)
	}
	for _, s := range slots {
		if !s.Available || s.Reason != "" {
			t.Errorf("slot %s should be available, got %+v", s.Time, s)
		}
	}
}

func TestBuildSlotsBufferStepping(t *testing.T) {
	// 09:00-11:00 with 30-minute slots and 15-minute buffer steps by 45.
	win := Window{Open: true, StartMinute: 540, EndMinute: 660}
	day := mustDay(t, "2026-03-02")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	slots := BuildSlots(win, 30, 15, nil, day, now)
	want := []string{"09:00", "09:45", "10:30"}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d", len(slots), len(want))
	}
	for i, w := range want {
		if slots[i].Time != w {
			t.Errorf("slot[%d] = %q, want %q", i, slots[i].Time, w)
		}
	}
}

func TestBuildSlotsDropsPartialTrailingSlot(t *testing.T) {
	// 09:00-10:15 with 30-minute slots: 09:30 fits, 10:00 would run past the end.
	win := Window{Open: true, StartMinute: 540, EndMinute: 615}
	day := mustDay(t, "2026-03-02")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	slots := BuildSlots(win, 30, 0, nil, day, now)
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	if slots[1].Time != "09:30" {
		t.Errorf("last slot %q, want 09:30", slots[1].Time)
	}
}

func TestBuildSlotsMarksPastAndBooked(t *testing.T) {
	win := Window{Open: true, StartMinute: 540, EndMinute: 720}
	day := mustDay(t, "2026-03-02")
	// Request arrives mid-morning on the same day.
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	booked := map[string]bool{"09:30": true, "11:00": true}

	slots := BuildSlots(win, 30, 0, booked, day, now)
	if len(slots) != 6 {
		t.Fatalf("got %d slots, want 6", len(slots))
	}

	byTime := map[string]Slot{}
	for _, s := range slots {
		byTime[s.Time] = s
	}

	// 10:00 started exactly now, so it is past too.
	for _, tm := range []string{"09:00", "09:30", "10:00"} {
		s := byTime[tm]
		if s.Available || s.Reason != ReasonPast {
			t.Errorf("%s should be past, got %+v", tm, s)
		}
	}
	// Past wins over booked for 09:30; only 11:00 surfaces as booked.
	if s := byTime["11:00"]; s.Available || s.Reason != ReasonBooked {
		t.Errorf("11:00 should be booked, got %+v", s)
	}
	for _, tm := range []string{"10:30", "11:30"} {
		if s := byTime[tm]; !s.Available || s.Reason != "" {
			t.Errorf("%s should be available, got %+v", tm, s)
		}
	}
}

func TestBuildSlotsClosedWindow(t *testing.T) {
	day := mustDay(t, "2026-03-02")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if slots := BuildSlots(Window{}, 30, 0, nil, day, now); slots != nil {
		t.Fatalf("closed window should yield no slots, got %v", slots)
	}
	if slots := BuildSlots(Window{Open: true, StartMinute: 600, EndMinute: 600}, 30, 0, nil, day, now); slots != nil {
		t.Fatalf("empty window should yield no slots, got %v", slots)
	}
	if slots := BuildSlots(Window{Open: true, StartMinute: 540, EndMinute: 1020}, 0, 0, nil, day, now); slots != nil {
		t.Fatalf("zero slot length should yield no slots, got %v", slots)
	}
}

func TestBuildSlotsDeterministic(t *testing.T) {
	win := Window{Open: true, StartMinute: 540, EndMinute: 1020}
	day := mustDay(t, "2026-03-02")
	now := time.Date(2026, 3, 2, 11, 7, 0, 0, time.UTC)
	booked := map[string]bool{"13:00": true, "15:30": true}

	first := BuildSlots(win, 30, 0, booked, day, now)
	second := BuildSlots(win, 30, 0, booked, day, now)
	if len(first) != len(second) {
		t.Fatalf("grid length changed between runs")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("slot[%d] differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestResolveWindow(t *testing.T) {
	cal := Calendar{
		SlotMinutes:   30,
		BufferMinutes: 0,
		Holidays:      map[string]bool{"2026-03-04": true},
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		cal.Hours[wd] = Window{Open: true, StartMinute: 540, EndMinute: 1020}
	}
	cal.Hours[time.Sunday] = Window{}

	monday := mustDay(t, "2026-03-02")
	sunday := mustDay(t, "2026-03-01")
	holiday := mustDay(t, "2026-03-04") // a Wednesday

	if w := ResolveWindow(cal, nil, monday); !w.Open || w.StartMinute != 540 || w.EndMinute != 1020 {
		t.Fatalf("monday window = %+v", w)
	}
	if w := ResolveWindow(cal, nil, sunday); w.Open {
		t.Fatalf("sunday should be closed, got %+v", w)
	}
	if w := ResolveWindow(cal, nil, holiday); w.Open {
		t.Fatalf("holiday should be closed, got %+v", w)
	}

	// A staff override replaces the business default for that weekday.
	ov := Override{
		time.Monday: {Open: true, StartMinute: 720, EndMinute: 900},
		time.Sunday: {Open: true, StartMinute: 600, EndMinute: 720},
	}
	if w := ResolveWindow(cal, ov, monday); w.StartMinute != 720 || w.EndMinute != 900 {
		t.Fatalf("override should replace default, got %+v", w)
	}
	// An override can open a day the business keeps closed.
	if w := ResolveWindow(cal, ov, sunday); !w.Open || w.StartMinute != 600 {
		t.Fatalf("sunday override should open the day, got %+v", w)
	}
	// But never a holiday.
	ovWed := Override{time.Wednesday: {Open: true, StartMinute: 540, EndMinute: 1020}}
	if w := ResolveWindow(cal, ovWed, holiday); w.Open {
		t.Fatalf("holiday beats any override, got %+v", w)
	}
}
