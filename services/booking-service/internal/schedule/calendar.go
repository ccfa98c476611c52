package schedule

import "time"

// Window is a working window within a single day, expressed as minutes from
// midnight. A closed day has Open == false and zeroed bounds.
type Window struct {
	Open        bool
	StartMinute int
	EndMinute   int
}

// Calendar is the business-wide booking configuration, loaded once per
// request so every decision within the request sees one consistent snapshot.
type Calendar struct {
	SlotMinutes   int
	BufferMinutes int
	Hours         [7]Window       // indexed by time.Weekday (Sunday = 0)
	Holidays      map[string]bool // keyed by Day.String()
}

// Override is a staff member's weekly availability. When a weekday is
// present it replaces the business default for that weekday entirely; it
// never intersects with it.
type Override map[time.Weekday]Window

// ResolveWindow returns the bookable window for a day. Holidays close the
// whole day regardless of any per-staff override.
func ResolveWindow(cal Calendar, ov Override, day Day) Window {
	if cal.Holidays[day.String()] {
		return Window{}
	}
	if w, found := ov[day.Weekday()]; found {
		return w
	}
	return cal.Hours[day.Weekday()]
}
