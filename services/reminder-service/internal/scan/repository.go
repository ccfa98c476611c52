package scan

import (
	"context"

	"github.com/avani-k/slotbook/libs/db"
	"github.com/jackc/pgx/v5"
)

// DueAppointment is a confirmed appointment that still needs its
// day-before reminder.
type DueAppointment struct {
	ID            string
	RequesterID   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Day           string
	TimeSlot      string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// FetchDue claims a batch of tomorrow's unreminded confirmed appointments.
// SKIP LOCKED lets multiple reminder instances sweep concurrently without
// double-claiming rows.
func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, day string, limit int) ([]DueAppointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, requester_id, customer_name, customer_email, customer_phone, day, time_slot
		FROM appointments
		WHERE day = $1
			AND status = 'confirmed'
			AND NOT reminder_sent
		ORDER BY time_slot
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, day, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueAppointment
	for rows.Next() {
		var a DueAppointment
		if err := rows.Scan(&a.ID, &a.RequesterID, &a.CustomerName, &a.CustomerEmail, &a.CustomerPhone, &a.Day, &a.TimeSlot); err != nil {
			return nil, err
		}
		due = append(due, a)
	}
	return due, rows.Err()
}

func (r *Repository) MarkReminded(ctx context.Context, tx pgx.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true, updated_at = now()
		WHERE id = ANY($1::uuid[])
	`, ids)
	return err
}
