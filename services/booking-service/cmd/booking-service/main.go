package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/avani-k/slotbook/libs/auth"
	"github.com/avani-k/slotbook/libs/config"
	"github.com/avani-k/slotbook/libs/db"
	"github.com/avani-k/slotbook/libs/httpx"
	"github.com/avani-k/slotbook/libs/kafkax"
	otelx "github.com/avani-k/slotbook/libs/otel"
	"github.com/avani-k/slotbook/libs/runtime"
	"github.com/avani-k/slotbook/services/booking-service/internal/consumer"
	"github.com/avani-k/slotbook/services/booking-service/internal/handlers"
	"github.com/avani-k/slotbook/services/booking-service/internal/inbox"
	"github.com/avani-k/slotbook/services/booking-service/internal/model"
	"github.com/avani-k/slotbook/services/booking-service/internal/outbox"
	"github.com/avani-k/slotbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// deliveryReport is the payload shape of notification.sent.v1 and
// notification.failed.v1 coming back from the notification service.
type deliveryReport struct {
	AppointmentID string `json:"appointment_id"`
	Channel       string `json:"channel"`
	Recipient     string `json:"recipient"`
	ProviderID    string `json:"provider_id"`
	ErrorReason   string `json:"error_reason"`
}

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8081")
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
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	tokenSecret, err := config.RequiredString("AUTH_TOKEN_SECRET")
	if err != nil {
		panic(err)
	}

	settingsRepo := storage.NewSettingsRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	statsRepo := storage.NewStatsRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: config.DurationSeconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	// Delivery reports from the notification service land on the
	// appointment's notification log.
	recordDelivery := func(status string) consumer.Handler {
		return func(ctx context.Context, msg kafka.Message) error {
			var report deliveryReport
			if err := json.Unmarshal(msg.Value, &report); err != nil {
				logger.Error("invalid delivery report", "err", err)
				return nil
			}
			if report.AppointmentID == "" || report.Channel == "" {
				logger.Error("delivery report missing fields", "topic", msg.Topic)
				return nil
			}
			detail := report.ProviderID
			if status == "failed" {
				detail = report.ErrorReason
			}
			return bookingRepo.AppendNotification(ctx, model.NotificationEntry{
				AppointmentID: report.AppointmentID,
				Channel:       report.Channel,
				Recipient:     report.Recipient,
				Status:        status,
				Detail:        detail,
			})
		}
	}
	if kafkaBrokers != "" {
		groupID := config.String("KAFKA_GROUP_ID", "booking-service")
		sentConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: kafkaBrokers,
			GroupID: groupID,
			Topic:   "notification.sent.v1",
		}, recordDelivery("sent"))
		go sentConsumer.Run(ctx)

		failedConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: kafkaBrokers,
			GroupID: groupID,
			Topic:   "notification.failed.v1",
		}, recordDelivery("failed"))
		go failedConsumer.Run(ctx)
	}

	bookingHandler := handlers.NewBookingHandler(bookingRepo, settingsRepo, outboxRepo, logger)
	adminHandler := handlers.NewAdminHandler(settingsRepo, bookingRepo, statsRepo, logger)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/slots", bookingHandler.Slots)
	api.HandleFunc("/api/v1/appointments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			bookingHandler.Create(w, r)
		default:
			bookingHandler.List(w, r)
		}
	})
	api.HandleFunc("/api/v1/appointments/detail", bookingHandler.Detail)
	api.HandleFunc("/api/v1/appointments/status", bookingHandler.UpdateStatus)
	api.HandleFunc("/api/v1/appointments/reschedule", bookingHandler.Reschedule)
	api.HandleFunc("/api/v1/admin/settings", adminHandler.Settings)
	api.HandleFunc("/api/v1/admin/hours", adminHandler.Hours)
	api.HandleFunc("/api/v1/admin/holidays", adminHandler.Holidays)
	api.HandleFunc("/api/v1/admin/staff", adminHandler.Staff)
	api.HandleFunc("/api/v1/admin/staff/availability", adminHandler.Availability)
	api.HandleFunc("/api/v1/admin/appointments", adminHandler.Appointments)
	api.HandleFunc("/api/v1/admin/appointments/export", adminHandler.Export)
	api.HandleFunc("/api/v1/admin/stats", adminHandler.Stats)

	apiChain := []httpx.Middleware{auth.RequireActor([]byte(tokenSecret))}
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PER_MINUTE", 120),
			time.Minute,
			"booking",
		)
		apiChain = append([]httpx.Middleware{limiter.Middleware(logger, true)}, apiChain...)
	} else {
		limiter := httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute)
		apiChain = append([]httpx.Middleware{limiter.Middleware()}, apiChain...)
	}

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	mux.Handle("/api/", httpx.Chain(api, apiChain...))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	handler = otelhttp.NewHandler(handler, "booking")
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
