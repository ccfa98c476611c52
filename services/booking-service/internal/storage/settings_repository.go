package storage

import (
	"context"
	"errors"
	"time"

	"github.com/avani-k/slotbook/libs/db"
	"github.com/avani-k/slotbook/services/booking-service/internal/schedule"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SettingsRepository struct {
	pool *db.Pool
}

func NewSettingsRepository(pool *db.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

type BusinessSettings struct {
	Name          string
	Timezone      string
	SlotMinutes   int
	BufferMinutes int
	UpdatedAt     time.Time
}

type Holiday struct {
	ID          string
	Day         string
	Description string
}

type StaffMember struct {
	ID       string
	Name     string
	IsActive bool
}

// defaultHours is seeded on first access: Mon-Fri 09:00-17:00, weekend closed.
var defaultHours = [7]schedule.Window{
	time.Sunday:    {},
	time.Monday:    {Open: true, StartMinute: 540, EndMinute: 1020},
	time.Tuesday:   {Open: true, StartMinute: 540, EndMinute: 1020},
	time.Wednesday: {Open: true, StartMinute: 540, EndMinute: 1020},
	time.Thursday:  {Open: true, StartMinute: 540, EndMinute: 1020},
	time.Friday:    {Open: true, StartMinute: 540, EndMinute: 1020},
	time.Saturday:  {},
}

// Settings returns the singleton business settings row, creating it with
// defaults on first access.
func (r *SettingsRepository) Settings(ctx context.Context) (BusinessSettings, error) {
	var s BusinessSettings
	err := r.pool.QueryRow(ctx, `
		SELECT name, timezone, slot_duration_minutes, buffer_minutes, updated_at
		FROM business_settings
		WHERE id = 1
	`).Scan(&s.Name, &s.Timezone, &s.SlotMinutes, &s.BufferMinutes, &s.UpdatedAt)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return BusinessSettings{}, err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO business_settings (id) VALUES (1)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return BusinessSettings{}, err
	}
	err = r.pool.QueryRow(ctx, `
		SELECT name, timezone, slot_duration_minutes, buffer_minutes, updated_at
		FROM business_settings
		WHERE id = 1
	`).Scan(&s.Name, &s.Timezone, &s.SlotMinutes, &s.BufferMinutes, &s.UpdatedAt)
	return s, err
}

func (r *SettingsRepository) UpdateSettings(ctx context.Context, name, timezone string, slotMinutes, bufferMinutes int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_settings (id, name, timezone, slot_duration_minutes, buffer_minutes, updated_at)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET name = $1, timezone = $2, slot_duration_minutes = $3, buffer_minutes = $4, updated_at = now()
	`, name, timezone, slotMinutes, bufferMinutes)
	return err
}

// LoadCalendar fetches the full booking configuration in one snapshot:
// slot sizing, weekly hours, and the holiday set around the requested day.
func (r *SettingsRepository) LoadCalendar(ctx context.Context) (schedule.Calendar, error) {
	settings, err := r.Settings(ctx)
	if err != nil {
		return schedule.Calendar{}, err
	}
	cal := schedule.Calendar{
		SlotMinutes:   settings.SlotMinutes,
		BufferMinutes: settings.BufferMinutes,
		Hours:         defaultHours,
		Holidays:      map[string]bool{},
	}

	rows, err := r.pool.Query(ctx, `
		SELECT weekday, is_open, start_minute, end_minute
		FROM business_hours
	`)
	if err != nil {
		return schedule.Calendar{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var weekday int
		var w schedule.Window
		if err := rows.Scan(&weekday, &w.Open, &w.StartMinute, &w.EndMinute); err != nil {
			return schedule.Calendar{}, err
		}
		if weekday >= 0 && weekday <= 6 {
			cal.Hours[weekday] = w
		}
	}
	if rows.Err() != nil {
		return schedule.Calendar{}, rows.Err()
	}

	holidayRows, err := r.pool.Query(ctx, `SELECT day FROM holidays`)
	if err != nil {
		return schedule.Calendar{}, err
	}
	defer holidayRows.Close()
	for holidayRows.Next() {
		var day string
		if err := holidayRows.Scan(&day); err != nil {
			return schedule.Calendar{}, err
		}
		cal.Holidays[day] = true
	}
	return cal, holidayRows.Err()
}

// LoadOverride fetches a staff member's weekly availability. A nil map means
// the staff member has no override rows and business hours apply.
func (r *SettingsRepository) LoadOverride(ctx context.Context, staffID string) (schedule.Override, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, is_available, start_minute, end_minute
		FROM staff_availability
		WHERE staff_id = $1
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ov schedule.Override
	for rows.Next() {
		var weekday int
		var w schedule.Window
		if err := rows.Scan(&weekday, &w.Open, &w.StartMinute, &w.EndMinute); err != nil {
			return nil, err
		}
		if ov == nil {
			ov = schedule.Override{}
		}
		ov[time.Weekday(weekday)] = w
	}
	return ov, rows.Err()
}

func (r *SettingsRepository) UpsertHours(ctx context.Context, weekday int, open bool, startMinute, endMinute int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_hours (weekday, is_open, start_minute, end_minute)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (weekday) DO UPDATE
		SET is_open = $2, start_minute = $3, end_minute = $4
	`, weekday, open, startMinute, endMinute)
	return err
}

func (r *SettingsRepository) AddHoliday(ctx context.Context, day, description string) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO holidays (id, day, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (day) DO UPDATE SET description = $3
	`, id, day, description)
	return id, err
}

func (r *SettingsRepository) RemoveHoliday(ctx context.Context, day string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM holidays WHERE day = $1`, day)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SettingsRepository) ListHolidays(ctx context.Context) ([]Holiday, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, day, description
		FROM holidays
		ORDER BY day
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.ID, &h.Day, &h.Description); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

func (r *SettingsRepository) CreateStaff(ctx context.Context, id, name string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = $2, is_active = true
	`, id, name)
	return err
}

func (r *SettingsRepository) ListStaff(ctx context.Context) ([]StaffMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, is_active
		FROM staff
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []StaffMember
	for rows.Next() {
		var m StaffMember
		if err := rows.Scan(&m.ID, &m.Name, &m.IsActive); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// StaffExists reports whether an active staff member with this id exists.
func (r *SettingsRepository) StaffExists(ctx context.Context, staffID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM staff WHERE id = $1 AND is_active)
	`, staffID).Scan(&exists)
	return exists, err
}

func (r *SettingsRepository) UpsertAvailability(ctx context.Context, staffID string, weekday int, available bool, startMinute, endMinute int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_availability (staff_id, weekday, is_available, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (staff_id, weekday) DO UPDATE
		SET is_available = $3, start_minute = $4, end_minute = $5
	`, staffID, weekday, available, startMinute, endMinute)
	return err
}
