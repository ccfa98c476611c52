package storage

import (
	"context"

	"github.com/avani-k/slotbook/libs/db"
)

type StatsRepository struct {
	pool *db.Pool
}

func NewStatsRepository(pool *db.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

type DayCount struct {
	Day   string
	Count int
}

type SlotCount struct {
	TimeSlot string
	Count    int
}

func (r *StatsRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountPerDay returns booking volume per day in [fromDay, toDay]. Days with
// no appointments are absent; callers fill gaps if they need a dense series.
func (r *StatsRepository) CountPerDay(ctx context.Context, fromDay, toDay string) ([]DayCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day, count(*)
		FROM appointments
		WHERE day >= $1 AND day <= $2
		GROUP BY day
		ORDER BY day
	`, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []DayCount
	for rows.Next() {
		var c DayCount
		if err := rows.Scan(&c.Day, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// BusiestSlots ranks slot times by all-time booking volume.
func (r *StatsRepository) BusiestSlots(ctx context.Context, limit int) ([]SlotCount, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot, count(*)
		FROM appointments
		GROUP BY time_slot
		ORDER BY count(*) DESC, time_slot
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []SlotCount
	for rows.Next() {
		var c SlotCount
		if err := rows.Scan(&c.TimeSlot, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ExportRow is one line of the admin CSV export, denormalised with the
// staff member's display name.
type ExportRow struct {
	ID           string
	Day          string
	TimeSlot     string
	Status       string
	StaffName    string
	CustomerName string
	CreatedAt    string
}

func (r *StatsRepository) ExportRows(ctx context.Context, fromDay, toDay string) ([]ExportRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.day, a.time_slot, a.status,
			COALESCE(s.name, ''), a.customer_name,
			to_char(a.created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		FROM appointments a
		LEFT JOIN staff s ON s.id = a.staff_id
		WHERE ($1 = '' OR a.day >= $1)
			AND ($2 = '' OR a.day <= $2)
		ORDER BY a.day, a.time_slot, a.created_at
	`, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var row ExportRow
		if err := rows.Scan(&row.ID, &row.Day, &row.TimeSlot, &row.Status, &row.StaffName, &row.CustomerName, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
