package handlers

import (
	"context"

	"github.com/avani-k/slotbook/services/booking-service/internal/model"
	"github.com/avani-k/slotbook/services/booking-service/internal/outbox"
	"github.com/avani-k/slotbook/services/booking-service/internal/schedule"
	"github.com/avani-k/slotbook/services/booking-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

// Handlers depend on these narrow views of the repositories so they can be
// exercised without a database.

type bookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Reserve(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error
	Get(ctx context.Context, id string) (model.Appointment, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error)
	SetStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) error
	AppendAudit(ctx context.Context, tx pgx.Tx, appointmentID, action, actorID, detail string) error
	ListAudit(ctx context.Context, appointmentID string) ([]model.AuditEntry, error)
	BookedSlots(ctx context.Context, day, staffID string) (map[string]bool, error)
	ListByRequester(ctx context.Context, requesterID string, status model.Status, limit int) ([]model.Appointment, error)
	ListNotifications(ctx context.Context, appointmentID string) ([]model.NotificationEntry, error)
}

// scheduleStore is the slice of the settings repository the booking grid
// needs: one calendar snapshot, per-staff overrides, staff existence.
type scheduleStore interface {
	LoadCalendar(ctx context.Context) (schedule.Calendar, error)
	LoadOverride(ctx context.Context, staffID string) (schedule.Override, error)
	StaffExists(ctx context.Context, staffID string) (bool, error)
}

type settingsStore interface {
	scheduleStore
	Settings(ctx context.Context) (storage.BusinessSettings, error)
	UpdateSettings(ctx context.Context, name, timezone string, slotMinutes, bufferMinutes int) error
	UpsertHours(ctx context.Context, weekday int, open bool, startMinute, endMinute int) error
	AddHoliday(ctx context.Context, day, description string) (string, error)
	RemoveHoliday(ctx context.Context, day string) (bool, error)
	ListHolidays(ctx context.Context) ([]storage.Holiday, error)
	CreateStaff(ctx context.Context, id, name string) error
	ListStaff(ctx context.Context) ([]storage.StaffMember, error)
	UpsertAvailability(ctx context.Context, staffID string, weekday int, available bool, startMinute, endMinute int) error
}

type appointmentLister interface {
	ListAdmin(ctx context.Context, f storage.AdminFilter) ([]model.Appointment, error)
}

type statsStore interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountPerDay(ctx context.Context, fromDay, toDay string) ([]storage.DayCount, error)
	BusiestSlots(ctx context.Context, limit int) ([]storage.SlotCount, error)
	ExportRows(ctx context.Context, fromDay, toDay string) ([]storage.ExportRow, error)
}

type eventOutbox interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

var (
	_ bookingStore      = (*storage.BookingRepository)(nil)
	_ settingsStore     = (*storage.SettingsRepository)(nil)
	_ appointmentLister = (*storage.BookingRepository)(nil)
	_ statsStore        = (*storage.StatsRepository)(nil)
	_ eventOutbox       = (*outbox.Repository)(nil)
)
