package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/avani-k/slotbook/services/notification-service/internal/compose"
	"github.com/avani-k/slotbook/services/notification-service/internal/email"
	"github.com/avani-k/slotbook/services/notification-service/internal/outbox"
	"github.com/avani-k/slotbook/services/notification-service/internal/sms"
	"github.com/avani-k/slotbook/services/notification-service/internal/storage"
)

// Dispatcher fans a rendered message out to every channel that has a
// recipient, records each attempt, and reports the outcome back on the bus
// as notification.sent / notification.failed.
type Dispatcher struct {
	email      email.Sender
	sms        sms.Sender
	smsID      string
	store      *storage.Repository
	outbox     *outbox.Repository
	logger     *slog.Logger
	failSuffix string
	now        func() time.Time
}

func New(emailSender email.Sender, smsSender sms.Sender, store *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger, failSuffix string) *Dispatcher {
	return &Dispatcher{
		email:      emailSender,
		sms:        smsSender,
		smsID:      smsSender.ProviderID(),
		store:      store,
		outbox:     outboxRepo,
		logger:     logger,
		failSuffix: failSuffix,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Target names the appointment and its reachable contact points.
type Target struct {
	AppointmentID string
	Email         string
	Phone         string
}

func (d *Dispatcher) Deliver(ctx context.Context, target Target, msg compose.Message, templateData map[string]any) error {
	if strings.TrimSpace(target.Email) != "" {
		if err := d.deliverOne(ctx, target.AppointmentID, "email", target.Email, msg, templateData); err != nil {
			return err
		}
	}
	if strings.TrimSpace(target.Phone) != "" {
		if err := d.deliverOne(ctx, target.AppointmentID, "sms", target.Phone, msg, templateData); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) deliverOne(ctx context.Context, appointmentID, channel, recipient string, msg compose.Message, templateData map[string]any) error {
	status := "sent"
	detail := ""

	switch {
	case d.failSuffix != "" && strings.HasSuffix(recipient, d.failSuffix):
		// Test hook: recipients with the configured suffix fail without
		// touching a real provider.
		status = "failed"
		detail = "simulated failure"
	case channel == "email":
		if err := d.email.Send(recipient, msg.Subject, msg.Body); err != nil {
			status = "failed"
			detail = err.Error()
			d.logger.Error("email send failed", "err", err, "recipient", recipient)
		} else {
			detail = "smtp"
		}
	case channel == "sms":
		if err := d.sms.Send(ctx, recipient, msg.Body); err != nil {
			status = "failed"
			detail = err.Error()
			d.logger.Error("sms send failed", "err", err, "recipient", recipient)
		} else {
			detail = d.smsID
		}
	}

	if err := d.store.Insert(ctx, storage.Notification{
		AppointmentID: appointmentID,
		Channel:       channel,
		Recipient:     recipient,
		Payload:       templateData,
		Status:        status,
		Detail:        detail,
	}); err != nil {
		return err
	}

	if err := d.reportOutcome(ctx, appointmentID, channel, recipient, status, detail); err != nil {
		return err
	}

	d.logger.Info("notification processed",
		"appointment_id", appointmentID, "channel", channel, "status", status)
	return nil
}

func (d *Dispatcher) reportOutcome(ctx context.Context, appointmentID, channel, recipient, status, detail string) error {
	eventType := "notification.sent.v1"
	body := map[string]any{
		"appointment_id": appointmentID,
		"channel":        channel,
		"recipient":      recipient,
	}
	if status == "failed" {
		eventType = "notification.failed.v1"
		body["error_reason"] = detail
		body["failed_at"] = d.now().Format(time.RFC3339)
	} else {
		body["provider_id"] = detail
		body["sent_at"] = d.now().Format(time.RFC3339)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return d.outbox.InsertStandalone(ctx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   appointmentID,
		EventType:     eventType,
		Payload:       payload,
	})
}
