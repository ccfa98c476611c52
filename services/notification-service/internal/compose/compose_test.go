package compose

import (
	"strings"
	"testing"
)

func TestBooked(t *testing.T) {
	msg := Booked("Priya", "2026-03-02", "09:30")
	if msg.Subject != "Appointment received" {
		t.Errorf("subject = %q", msg.Subject)
	}
	for _, want := range []string{"Hello Priya", "2026-03-02", "09:30"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body %q missing %q", msg.Body, want)
		}
	}
}

func TestGreetingFallsBackWithoutName(t *testing.T) {
	msg := Reminder("  ", "2026-03-02", "09:30")
	if !strings.HasPrefix(msg.Body, "Hello,") {
		t.Errorf("body should open with a bare greeting, got %q", msg.Body)
	}
}

func TestStatusChanged(t *testing.T) {
	for _, status := range []string{"confirmed", "rejected", "cancelled"} {
		msg, ok := StatusChanged("Priya", "2026-03-02", "09:30", status)
		if !ok {
			t.Fatalf("%s should produce a message", status)
		}
		if !strings.Contains(msg.Subject, status) {
			t.Errorf("subject %q missing status %q", msg.Subject, status)
		}
	}

	// Internal transitions stay internal.
	for _, status := range []string{"completed", "no_show", "pending", ""} {
		if _, ok := StatusChanged("Priya", "2026-03-02", "09:30", status); ok {
			t.Errorf("%q should not notify the customer", status)
		}
	}
}

func TestRescheduled(t *testing.T) {
	msg := Rescheduled("Priya", "2026-03-02", "09:30", "2026-03-05", "14:00")
	for _, want := range []string{"2026-03-02", "09:30", "2026-03-05", "14:00"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body %q missing %q", msg.Body, want)
		}
	}
}
