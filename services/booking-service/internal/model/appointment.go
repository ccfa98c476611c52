package model

import "time"

type Appointment struct {
	ID              string
	RequesterID     string
	StaffID         string // empty when the booking is not tied to a staff member
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Notes           string
	Day             string // YYYY-MM-DD
	TimeSlot        string // HH:MM
	DurationMinutes int
	Status          Status
	ReminderSent    bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type AuditEntry struct {
	ID            int64
	AppointmentID string
	Action        string
	ActorID       string
	Detail        string
	CreatedAt     time.Time
}

// NotificationEntry is one delivery attempt reported back by the
// notification service for an appointment.
type NotificationEntry struct {
	ID            int64
	AppointmentID string
	Channel       string
	Recipient     string
	Status        string
	Detail        string
	CreatedAt     time.Time
}
