package storage

import (
	"context"

	"github.com/avani-k/slotbook/libs/db"
	"github.com/avani-k/slotbook/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `
	id, requester_id, COALESCE(staff_id::text, ''), customer_name, customer_email,
	customer_phone, notes, day, time_slot, duration_minutes, status, reminder_sent,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.RequesterID,
		&a.StaffID,
		&a.CustomerName,
		&a.CustomerEmail,
		&a.CustomerPhone,
		&a.Notes,
		&a.Day,
		&a.TimeSlot,
		&a.DurationMinutes,
		&a.Status,
		&a.ReminderSent,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

// Reserve atomically claims a slot for a new appointment. An advisory
// transaction lock on the slot key serialises concurrent attempts; the
// conflict check then sees any committed occupant, and the partial unique
// index backstops the race across databases that lost the lock ordering.
// Loser reservations get ErrSlotTaken.
func (r *BookingRepository) Reserve(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	staffKey := appt.StaffID
	if staffKey == "" {
		staffKey = "00000000-0000-0000-0000-000000000000"
	}
	lockKey := appt.Day + "|" + appt.TimeSlot + "|" + staffKey
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return err
	}

	var occupied bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE day = $1
				AND time_slot = $2
				AND COALESCE(staff_id, '00000000-0000-0000-0000-000000000000'::uuid) = $3::uuid
				AND status IN ('pending', 'confirmed')
		)
	`, appt.Day, appt.TimeSlot, staffKey).Scan(&occupied)
	if err != nil {
		return err
	}
	if occupied {
		return ErrSlotTaken
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, requester_id, staff_id, customer_name, customer_email, customer_phone,
			 notes, day, time_slot, duration_minutes, status)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, $11)
	`, appt.ID, appt.RequesterID, appt.StaffID, appt.CustomerName, appt.CustomerEmail,
		appt.CustomerPhone, appt.Notes, appt.Day, appt.TimeSlot, appt.DurationMinutes, appt.Status)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrSlotTaken
		}
		return err
	}
	return nil
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (r *BookingRepository) SetStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BookingRepository) AppendAudit(ctx context.Context, tx pgx.Tx, appointmentID, action, actorID, detail string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_audit (appointment_id, action, actor_id, detail)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4)
	`, appointmentID, action, actorID, detail)
	return err
}

func (r *BookingRepository) ListAudit(ctx context.Context, appointmentID string) ([]model.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, action, COALESCE(actor_id::text, ''), detail, created_at
		FROM appointment_audit
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.Action, &e.ActorID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// BookedSlots returns the occupied slot times for one day and slot key
// (a staff member, or the unassigned pool when staffID is empty).
func (r *BookingRepository) BookedSlots(ctx context.Context, day, staffID string) (map[string]bool, error) {
	staffKey := staffID
	if staffKey == "" {
		staffKey = "00000000-0000-0000-0000-000000000000"
	}
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot
		FROM appointments
		WHERE day = $1
			AND COALESCE(staff_id, '00000000-0000-0000-0000-000000000000'::uuid) = $2::uuid
			AND status IN ('pending', 'confirmed')
	`, day, staffKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	booked := map[string]bool{}
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		booked[slot] = true
	}
	return booked, rows.Err()
}

func (r *BookingRepository) ListByRequester(ctx context.Context, requesterID string, status model.Status, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE requester_id = $1
			AND ($2 = '' OR status = $2)
		ORDER BY day DESC, time_slot DESC
		LIMIT $3
	`, requesterID, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

type AdminFilter struct {
	FromDay string
	ToDay   string
	Status  model.Status
	StaffID string
	Limit   int
	Offset  int
}

func (r *BookingRepository) ListAdmin(ctx context.Context, f AdminFilter) ([]model.Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE ($1 = '' OR day >= $1)
			AND ($2 = '' OR day <= $2)
			AND ($3 = '' OR status = $3)
			AND ($4 = '' OR staff_id = NULLIF($4, '')::uuid)
		ORDER BY day, time_slot, created_at
		LIMIT $5 OFFSET $6
	`, f.FromDay, f.ToDay, string(f.Status), f.StaffID, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (r *BookingRepository) AppendNotification(ctx context.Context, n model.NotificationEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_notifications (appointment_id, channel, recipient, status, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, n.AppointmentID, n.Channel, n.Recipient, n.Status, n.Detail)
	return err
}

func (r *BookingRepository) ListNotifications(ctx context.Context, appointmentID string) ([]model.NotificationEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, channel, recipient, status, detail, created_at
		FROM appointment_notifications
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.NotificationEntry
	for rows.Next() {
		var e model.NotificationEntry
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.Channel, &e.Recipient, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
