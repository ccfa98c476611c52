package storage

import (
	"context"
	"encoding/json"

	"github.com/avani-k/slotbook/libs/db"
)

// Notification is one dispatch attempt, recorded whether it succeeded
// or not.
type Notification struct {
	AppointmentID string
	Channel       string
	Recipient     string
	Payload       map[string]any
	Status        string
	Detail        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, channel, recipient, payload, status, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.AppointmentID, n.Channel, n.Recipient, payload, n.Status, n.Detail)
	return err
}
