package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avani-k/slotbook/libs/auth"
	"github.com/avani-k/slotbook/libs/httpx"
	"github.com/avani-k/slotbook/services/booking-service/internal/model"
	"github.com/avani-k/slotbook/services/booking-service/internal/outbox"
	"github.com/avani-k/slotbook/services/booking-service/internal/schedule"
	"github.com/avani-k/slotbook/services/booking-service/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BookingHandler struct {
	repo       bookingStore
	settings   scheduleStore
	outboxRepo eventOutbox
	logger     *slog.Logger
	now        func() time.Time
}

func NewBookingHandler(repo bookingStore, settings scheduleStore, outboxRepo eventOutbox, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		settings:   settings,
		outboxRepo: outboxRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type slotItem struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type appointmentItem struct {
	AppointmentID   string `json:"appointment_id"`
	RequesterID     string `json:"requester_id"`
	StaffID         string `json:"staff_id,omitempty"`
	CustomerName    string `json:"customer_name,omitempty"`
	CustomerEmail   string `json:"customer_email,omitempty"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	Notes           string `json:"notes,omitempty"`
	Day             string `json:"day"`
	TimeSlot        string `json:"time_slot"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		AppointmentID:   a.ID,
		RequesterID:     a.RequesterID,
		StaffID:         a.StaffID,
		CustomerName:    a.CustomerName,
		CustomerEmail:   a.CustomerEmail,
		CustomerPhone:   a.CustomerPhone,
		Notes:           a.Notes,
		Day:             a.Day,
		TimeSlot:        a.TimeSlot,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Slots returns the bookable grid for one day, optionally narrowed to a
// staff member's slot key.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	day, err := schedule.ParseDay(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	if staffID != "" {
		if _, err := uuid.Parse(staffID); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid staff_id")
			return
		}
		exists, err := h.settings.StaffExists(r.Context(), staffID)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "failed to load staff")
			return
		}
		if !exists {
			httpx.WriteError(w, http.StatusNotFound, "staff not found")
			return
		}
	}

	slots, _, err := h.buildGrid(r.Context(), day, staffID)
	if err != nil {
		h.logger.Error("slot grid build failed", "err", err, "day", day.String())
		httpx.WriteError(w, http.StatusInternalServerError, "failed to build slots")
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{Time: s.Time, Available: s.Available, Reason: s.Reason})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// buildGrid resolves the day's window against one configuration snapshot
// and marks past/booked slots. A closed or holiday day yields an empty grid.
func (h *BookingHandler) buildGrid(ctx context.Context, day schedule.Day, staffID string) ([]schedule.Slot, schedule.Calendar, error) {
	cal, err := h.settings.LoadCalendar(ctx)
	if err != nil {
		return nil, schedule.Calendar{}, err
	}
	var ov schedule.Override
	if staffID != "" {
		ov, err = h.settings.LoadOverride(ctx, staffID)
		if err != nil {
			return nil, schedule.Calendar{}, err
		}
	}

	win := schedule.ResolveWindow(cal, ov, day)
	if !win.Open {
		return nil, cal, nil
	}

	booked, err := h.repo.BookedSlots(ctx, day.String(), staffID)
	if err != nil {
		return nil, schedule.Calendar{}, err
	}
	return schedule.BuildSlots(win, cal.SlotMinutes, cal.BufferMinutes, booked, day, h.now()), cal, nil
}

type createRequest struct {
	Day           string `json:"day"`
	TimeSlot      string `json:"time_slot"`
	StaffID       string `json:"staff_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Notes         string `json:"notes"`
}

// Create reserves a slot for the authenticated requester. The slot is
// claimed atomically: under concurrency exactly one request wins, the rest
// get 409.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)

	appt, status, msg := h.validateReservation(r.Context(), req, actor.ID)
	if msg != "" {
		httpx.WriteError(w, status, msg)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.Reserve(ctx, tx, appt); err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			httpx.WriteError(w, http.StatusConflict, "slot already taken")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "failed to reserve slot")
		return
	}
	if err := h.repo.AppendAudit(ctx, tx, appt.ID, "created", actor.ID, ""); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to record audit")
		return
	}
	if err := h.emitBooked(ctx, tx, appt); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to write outbox event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to commit")
		return
	}

	appt.CreatedAt = h.now()
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentItem(*appt))
}

// validateReservation checks a reservation request against the booking grid
// and returns the appointment ready to insert. On failure msg is non-empty
// and status carries the HTTP code.
func (h *BookingHandler) validateReservation(ctx context.Context, req createRequest, requesterID string) (*model.Appointment, int, string) {
	day, err := schedule.ParseDay(strings.TrimSpace(req.Day))
	if err != nil {
		return nil, http.StatusBadRequest, err.Error()
	}
	clock := strings.TrimSpace(req.TimeSlot)
	if _, err := schedule.ParseClock(clock); err != nil {
		return nil, http.StatusBadRequest, err.Error()
	}
	if day.Before(schedule.DayOf(h.now())) {
		return nil, http.StatusBadRequest, "cannot book a past date"
	}

	if req.StaffID != "" {
		if _, err := uuid.Parse(req.StaffID); err != nil {
			return nil, http.StatusBadRequest, "invalid staff_id"
		}
		exists, err := h.settings.StaffExists(ctx, req.StaffID)
		if err != nil {
			return nil, http.StatusInternalServerError, "failed to load staff"
		}
		if !exists {
			return nil, http.StatusNotFound, "staff not found"
		}
	}

	slots, cal, err := h.buildGrid(ctx, day, req.StaffID)
	if err != nil {
		return nil, http.StatusInternalServerError, "failed to build slots"
	}
	slot, found := schedule.FindSlot(slots, clock)
	if !found {
		return nil, http.StatusBadRequest, "time_slot is not on the booking grid for this day"
	}
	if slot.Reason == schedule.ReasonPast {
		return nil, http.StatusBadRequest, "slot has already started"
	}
	if slot.Reason == schedule.ReasonBooked {
		return nil, http.StatusConflict, "slot already taken"
	}

	return &model.Appointment{
		ID:              uuid.NewString(),
		RequesterID:     requesterID,
		StaffID:         req.StaffID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		Notes:           strings.TrimSpace(req.Notes),
		Day:             day.String(),
		TimeSlot:        clock,
		DurationMinutes: cal.SlotMinutes,
		Status:          model.StatusPending,
	}, 0, ""
}

func (h *BookingHandler) emitBooked(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"requester_id":   appt.RequesterID,
		"staff_id":       appt.StaffID,
		"customer_name":  appt.CustomerName,
		"customer_email": appt.CustomerEmail,
		"customer_phone": appt.CustomerPhone,
		"day":            appt.Day,
		"time_slot":      appt.TimeSlot,
		"booked_at":      h.now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "booking.appointment.booked.v1",
		Payload:       payload,
	})
}

// List returns the authenticated requester's own appointments.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var status model.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, ok := model.ParseStatus(raw)
		if !ok {
			httpx.WriteError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		status = parsed
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.repo.ListByRequester(r.Context(), actor.ID, status, limit)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

type detailResponse struct {
	appointmentItem
	Audit         []auditItem        `json:"audit"`
	Notifications []notificationItem `json:"notifications"`
}

type auditItem struct {
	Action    string `json:"action"`
	ActorID   string `json:"actor_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

type notificationItem struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Detail returns one appointment with its audit trail and notification log.
// Customers see their own; staff and admins see everything.
func (h *BookingHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	appt, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "appointment not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}
	if actor.Role == auth.RoleCustomer && appt.RequesterID != actor.ID {
		httpx.WriteError(w, http.StatusForbidden, "not your appointment")
		return
	}

	audit, err := h.repo.ListAudit(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load audit trail")
		return
	}
	notifications, err := h.repo.ListNotifications(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	resp := detailResponse{
		appointmentItem: toAppointmentItem(appt),
		Audit:           make([]auditItem, 0, len(audit)),
		Notifications:   make([]notificationItem, 0, len(notifications)),
	}
	for _, e := range audit {
		resp.Audit = append(resp.Audit, auditItem{
			Action:    e.Action,
			ActorID:   e.ActorID,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	for _, n := range notifications {
		resp.Notifications = append(resp.Notifications, notificationItem{
			Channel:   n.Channel,
			Recipient: n.Recipient,
			Status:    n.Status,
			Detail:    n.Detail,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	Detail        string `json:"detail"`
}

// UpdateStatus applies one explicit lifecycle transition. Staff and admins
// only; customers cancel through their own endpoint semantics (a pending or
// confirmed appointment they own).
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if _, err := uuid.Parse(req.AppointmentID); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid appointment_id")
		return
	}
	newStatus, ok := model.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "unknown status")
		return
	}
	if newStatus == model.StatusRescheduled {
		httpx.WriteError(w, http.StatusBadRequest, "use the reschedule endpoint")
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "appointment not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}

	// Customers may only cancel their own appointment; every other
	// transition needs a staff or admin actor.
	if actor.Role == auth.RoleCustomer {
		if appt.RequesterID != actor.ID {
			httpx.WriteError(w, http.StatusForbidden, "not your appointment")
			return
		}
		if newStatus != model.StatusCancelled {
			httpx.WriteError(w, http.StatusForbidden, "customers may only cancel")
			return
		}
	}

	if !model.CanTransition(appt.Status, newStatus) {
		httpx.WriteError(w, http.StatusUnprocessableEntity,
			"cannot transition from "+string(appt.Status)+" to "+string(newStatus))
		return
	}

	if err := h.repo.SetStatus(ctx, tx, appt.ID, newStatus); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update status")
		return
	}
	if err := h.repo.AppendAudit(ctx, tx, appt.ID, "status_changed", actor.ID,
		string(appt.Status)+" -> "+string(newStatus)); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to record audit")
		return
	}
	if err := h.emitStatusChanged(ctx, tx, appt, newStatus, actor.ID, req.Detail); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to write outbox event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to commit")
		return
	}

	appt.Status = newStatus
	httpx.WriteJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *BookingHandler) emitStatusChanged(ctx context.Context, tx pgx.Tx, appt model.Appointment, to model.Status, actorID, detail string) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"requester_id":   appt.RequesterID,
		"customer_name":  appt.CustomerName,
		"customer_email": appt.CustomerEmail,
		"customer_phone": appt.CustomerPhone,
		"day":            appt.Day,
		"time_slot":      appt.TimeSlot,
		"from_status":    string(appt.Status),
		"to_status":      string(to),
		"actor_id":       actorID,
		"detail":         strings.TrimSpace(detail),
		"changed_at":     h.now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "booking.appointment.status_changed.v1",
		Payload:       payload,
	})
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	Day           string `json:"day"`
	TimeSlot      string `json:"time_slot"`
}

// Reschedule moves an appointment to a new slot as one transaction: the new
// slot is reserved first, then the original is retired as rescheduled. When
// the new reservation fails the transaction rolls back and the original
// appointment is untouched.
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if _, err := uuid.Parse(req.AppointmentID); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid appointment_id")
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "appointment not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}
	if actor.Role == auth.RoleCustomer && old.RequesterID != actor.ID {
		httpx.WriteError(w, http.StatusForbidden, "not your appointment")
		return
	}
	switch old.Status {
	case model.StatusCancelled, model.StatusCompleted, model.StatusRejected:
		httpx.WriteError(w, http.StatusUnprocessableEntity,
			"a "+string(old.Status)+" appointment cannot be rescheduled")
		return
	}

	next, status, msg := h.validateReservation(ctx, createRequest{
		Day:           req.Day,
		TimeSlot:      req.TimeSlot,
		StaffID:       old.StaffID,
		CustomerName:  old.CustomerName,
		CustomerEmail: old.CustomerEmail,
		CustomerPhone: old.CustomerPhone,
		Notes:         old.Notes,
	}, old.RequesterID)
	if msg != "" {
		httpx.WriteError(w, status, msg)
		return
	}

	if err := h.repo.Reserve(ctx, tx, next); err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			httpx.WriteError(w, http.StatusConflict, "slot already taken")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "failed to reserve slot")
		return
	}
	if err := h.repo.SetStatus(ctx, tx, old.ID, model.StatusRescheduled); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to retire old appointment")
		return
	}
	if err := h.repo.AppendAudit(ctx, tx, old.ID, "rescheduled", actor.ID, "superseded by "+next.ID); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to record audit")
		return
	}
	if err := h.repo.AppendAudit(ctx, tx, next.ID, "created", actor.ID, "rescheduled from "+old.ID); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to record audit")
		return
	}

	payload, err := json.Marshal(map[string]any{
		"old_appointment_id": old.ID,
		"new_appointment_id": next.ID,
		"requester_id":       old.RequesterID,
		"customer_name":      old.CustomerName,
		"customer_email":     old.CustomerEmail,
		"customer_phone":     old.CustomerPhone,
		"old_day":            old.Day,
		"old_time_slot":      old.TimeSlot,
		"new_day":            next.Day,
		"new_time_slot":      next.TimeSlot,
		"actor_id":           actor.ID,
		"rescheduled_at":     h.now().Format(time.RFC3339),
	})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to build event payload")
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   next.ID,
		EventType:     "booking.appointment.rescheduled.v1",
		Payload:       payload,
	}); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to write outbox event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to commit")
		return
	}

	next.CreatedAt = h.now()
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentItem(*next))
}
