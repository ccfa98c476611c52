// Package compose renders the customer-facing text for each event the
// notification service handles.
package compose

import (
	"fmt"
	"strings"
)

// Message is a rendered notification; Subject is ignored for SMS.
type Message struct {
	Subject string
	Body    string
}

func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Hello"
	}
	return "Hello " + name
}

func Booked(name, day, timeSlot string) Message {
	return Message{
		Subject: "Appointment received",
		Body: fmt.Sprintf("%s, we received your appointment request for %s at %s. We will confirm it shortly.",
			greeting(name), day, timeSlot),
	}
}

func Reminder(name, day, timeSlot string) Message {
	return Message{
		Subject: "Appointment reminder",
		Body: fmt.Sprintf("%s, this is a reminder of your appointment tomorrow, %s at %s.",
			greeting(name), day, timeSlot),
	}
}

// StatusChanged covers confirmations, rejections, and cancellations. Only
// statuses the customer should hear about get a message; the second return
// is false for internal transitions like completed or no_show.
func StatusChanged(name, day, timeSlot, toStatus string) (Message, bool) {
	var line string
	switch toStatus {
	case "confirmed":
		line = "your appointment on %s at %s is confirmed."
	case "rejected":
		line = "unfortunately your appointment request for %s at %s could not be accommodated."
	case "cancelled":
		line = "your appointment on %s at %s has been cancelled."
	default:
		return Message{}, false
	}
	return Message{
		Subject: "Appointment " + toStatus,
		Body:    greeting(name) + ", " + fmt.Sprintf(line, day, timeSlot),
	}, true
}

func Rescheduled(name, oldDay, oldSlot, newDay, newSlot string) Message {
	return Message{
		Subject: "Appointment rescheduled",
		Body: fmt.Sprintf("%s, your appointment has moved from %s at %s to %s at %s.",
			greeting(name), oldDay, oldSlot, newDay, newSlot),
	}
}
