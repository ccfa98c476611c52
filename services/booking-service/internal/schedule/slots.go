package schedule

import "time"

const (
	ReasonPast   = "Past"
	ReasonBooked = "Booked"
)

// Slot is one entry in a day's bookable grid. Reason is empty for available
// slots, "Past" for slots that already started today, "Booked" for occupied
// ones. Past takes precedence over Booked.
type Slot struct {
	Time      string
	Available bool
	Reason    string
}

// BuildSlots generates the slot grid for a resolved window. Consecutive
// slots are separated by slotMinutes plus bufferMinutes; a slot is emitted
// only when the full slotMinutes fit inside the window, so a trailing
// partial slot is dropped rather than truncated. The result is
// deterministic: same inputs, same grid.
func BuildSlots(win Window, slotMinutes, bufferMinutes int, booked map[string]bool, day Day, now time.Time) []Slot {
	if !win.Open || slotMinutes <= 0 || bufferMinutes < 0 {
		return nil
	}
	if win.EndMinute <= win.StartMinute {
		return nil
	}

	isToday := day.Equal(DayOf(now))
	nowMinute := MinuteOfDay(now)

	step := slotMinutes + bufferMinutes
	var slots []Slot
	for start := win.StartMinute; start+slotMinutes <= win.EndMinute; start += step {
		s := Slot{Time: MinutesToClock(start)}
		switch {
		case isToday && start <= nowMinute:
			s.Reason = ReasonPast
		case booked[s.Time]:
			s.Reason = ReasonBooked
		default:
			s.Available = true
		}
		slots = append(slots, s)
	}
	return slots
}

// FindSlot locates the grid entry for a wall-clock time, if the time falls
// exactly on a slot boundary.
func FindSlot(slots []Slot, clock string) (Slot, bool) {
	for _, s := range slots {
		if s.Time == clock {
			return s, true
		}
	}
	return Slot{}, false
}
