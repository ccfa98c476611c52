package scan

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/avani-k/slotbook/services/reminder-service/internal/outbox"
)

// Worker periodically sweeps for confirmed appointments happening tomorrow
// and emits one reminder.due event per appointment. Claiming the batch and
// staging the events share a transaction, so a crash between the two never
// loses or duplicates a reminder.
type Worker struct {
	repo      *Repository
	outbox    *outbox.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewWorker(repo *Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{
		repo:      repo,
		outbox:    outboxRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error("reminder sweep failed", "err", err)
			}
		}
	}
}

// tomorrowFor renders the reminder target day for a sweep instant.
func tomorrowFor(now time.Time) string {
	return now.AddDate(0, 0, 1).Format("2006-01-02")
}

func (w *Worker) sweep(ctx context.Context) error {
	day := tomorrowFor(w.now())

	tx, err := w.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	due, err := w.repo.FetchDue(ctx, tx, day, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return tx.Commit(ctx)
	}

	ids := make([]string, 0, len(due))
	for _, appt := range due {
		payload, err := json.Marshal(map[string]any{
			"appointment_id": appt.ID,
			"requester_id":   appt.RequesterID,
			"customer_name":  appt.CustomerName,
			"customer_email": appt.CustomerEmail,
			"customer_phone": appt.CustomerPhone,
			"day":            appt.Day,
			"time_slot":      appt.TimeSlot,
			"due_at":         w.now().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := w.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   appt.ID,
			EventType:     "reminder.due.v1",
			Payload:       payload,
		}); err != nil {
			return err
		}
		ids = append(ids, appt.ID)
	}

	if err := w.repo.MarkReminded(ctx, tx, ids); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	w.logger.Info("reminders queued", "day", day, "count", len(ids))
	return nil
}
