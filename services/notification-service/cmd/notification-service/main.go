package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/avani-k/slotbook/libs/config"
	"github.com/avani-k/slotbook/libs/db"
	"github.com/avani-k/slotbook/libs/httpx"
	"github.com/avani-k/slotbook/libs/kafkax"
	otelx "github.com/avani-k/slotbook/libs/otel"
	"github.com/avani-k/slotbook/libs/runtime"
	"github.com/avani-k/slotbook/services/notification-service/internal/compose"
	"github.com/avani-k/slotbook/services/notification-service/internal/consumer"
	"github.com/avani-k/slotbook/services/notification-service/internal/dispatch"
	"github.com/avani-k/slotbook/services/notification-service/internal/email"
	"github.com/avani-k/slotbook/services/notification-service/internal/inbox"
	"github.com/avani-k/slotbook/services/notification-service/internal/outbox"
	"github.com/avani-k/slotbook/services/notification-service/internal/sms"
	"github.com/avani-k/slotbook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type appointmentEvent struct {
	AppointmentID    string `json:"appointment_id"`
	OldAppointmentID string `json:"old_appointment_id"`
	NewAppointmentID string `json:"new_appointment_id"`
	CustomerName     string `json:"customer_name"`
	CustomerEmail    string `json:"customer_email"`
	CustomerPhone    string `json:"customer_phone"`
	Day              string `json:"day"`
	TimeSlot         string `json:"time_slot"`
	ToStatus         string `json:"to_status"`
	OldDay           string `json:"old_day"`
	OldTimeSlot      string `json:"old_time_slot"`
	NewDay           string `json:"new_day"`
	NewTimeSlot      string `json:"new_time_slot"`
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 5)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: config.DurationSeconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@slotbook.local"),
	)

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		smsSender = sms.NewWebhookSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
		)
	default:
		smsSender = sms.NewNoopSender()
	}

	dispatcher := dispatch.New(emailSender, smsSender, notificationsRepo, outboxRepo, logger,
		config.String("NOTIFICATION_FAIL_SUFFIX", ""))

	decode := func(msg kafka.Message) (appointmentEvent, map[string]any, bool) {
		var evt appointmentEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return evt, nil, false
		}
		var raw map[string]any
		_ = json.Unmarshal(msg.Value, &raw)
		return evt, raw, true
	}

	handlers := map[string]consumer.Handler{
		"booking.appointment.booked.v1": func(ctx context.Context, msg kafka.Message) error {
			evt, raw, ok := decode(msg)
			if !ok || evt.AppointmentID == "" {
				return nil
			}
			return dispatcher.Deliver(ctx, dispatch.Target{
				AppointmentID: evt.AppointmentID,
				Email:         evt.CustomerEmail,
				Phone:         evt.CustomerPhone,
			}, compose.Booked(evt.CustomerName, evt.Day, evt.TimeSlot), raw)
		},
		"booking.appointment.status_changed.v1": func(ctx context.Context, msg kafka.Message) error {
			evt, raw, ok := decode(msg)
			if !ok || evt.AppointmentID == "" {
				return nil
			}
			message, notify := compose.StatusChanged(evt.CustomerName, evt.Day, evt.TimeSlot, evt.ToStatus)
			if !notify {
				return nil
			}
			return dispatcher.Deliver(ctx, dispatch.Target{
				AppointmentID: evt.AppointmentID,
				Email:         evt.CustomerEmail,
				Phone:         evt.CustomerPhone,
			}, message, raw)
		},
		"booking.appointment.rescheduled.v1": func(ctx context.Context, msg kafka.Message) error {
			evt, raw, ok := decode(msg)
			if !ok || evt.NewAppointmentID == "" {
				return nil
			}
			return dispatcher.Deliver(ctx, dispatch.Target{
				AppointmentID: evt.NewAppointmentID,
				Email:         evt.CustomerEmail,
				Phone:         evt.CustomerPhone,
			}, compose.Rescheduled(evt.CustomerName, evt.OldDay, evt.OldTimeSlot, evt.NewDay, evt.NewTimeSlot), raw)
		},
		"reminder.due.v1": func(ctx context.Context, msg kafka.Message) error {
			evt, raw, ok := decode(msg)
			if !ok || evt.AppointmentID == "" {
				return nil
			}
			return dispatcher.Deliver(ctx, dispatch.Target{
				AppointmentID: evt.AppointmentID,
				Email:         evt.CustomerEmail,
				Phone:         evt.CustomerPhone,
			}, compose.Reminder(evt.CustomerName, evt.Day, evt.TimeSlot), raw)
		},
	}

	if kafkaBrokers != "" {
		groupID := config.String("KAFKA_GROUP_ID", "notification-service")
		for topic, handler := range handlers {
			c := consumer.New(logger, inboxRepo, consumer.Config{
				Brokers: kafkaBrokers,
				GroupID: groupID,
				Topic:   topic,
			}, handler)
			go c.Run(ctx)
		}
	}

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
