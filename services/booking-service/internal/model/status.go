package model

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
	StatusRejected    Status = "rejected"
)

// transitions lists the states reachable through an explicit status update.
// Rescheduled is absent on purpose: it is only ever set by the reschedule
// operation, never by a direct update.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// ParseStatus validates a client-supplied status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled,
		StatusNoShow, StatusRescheduled, StatusRejected:
		return Status(s), true
	}
	return "", false
}

// CanTransition reports whether an explicit status update from `from`
// to `to` is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsOccupying reports whether an appointment in this state holds its slot.
// Only occupying appointments block new reservations for the same slot key.
func (s Status) IsOccupying() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsTerminal reports whether no further explicit transitions exist.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}
