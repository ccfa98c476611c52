package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avani-k/slotbook/libs/auth"
	"github.com/avani-k/slotbook/services/booking-service/internal/model"
	"github.com/avani-k/slotbook/services/booking-service/internal/outbox"
	"github.com/avani-k/slotbook/services/booking-service/internal/schedule"
	"github.com/avani-k/slotbook/services/booking-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

// fakeTx satisfies pgx.Tx for handlers that only commit or roll back; any
// other method panics on the embedded nil interface.
type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeBookingStore struct {
	appts        map[string]model.Appointment
	booked       map[string]bool
	reserveErr   error
	reserveCalls int
	reserved     []model.Appointment
	statusSets   map[string]model.Status
	audits       []string
}

func (f *fakeBookingStore) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeBookingStore) Reserve(_ context.Context, _ pgx.Tx, appt *model.Appointment) error {
	f.reserveCalls++
	if f.reserveErr != nil {
		return f.reserveErr
	}
	f.reserved = append(f.reserved, *appt)
	return nil
}

func (f *fakeBookingStore) Get(_ context.Context, id string) (model.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return a, nil
}

func (f *fakeBookingStore) GetForUpdate(ctx context.Context, _ pgx.Tx, id string) (model.Appointment, error) {
	return f.Get(ctx, id)
}

func (f *fakeBookingStore) SetStatus(_ context.Context, _ pgx.Tx, id string, status model.Status) error {
	if f.statusSets == nil {
		f.statusSets = map[string]model.Status{}
	}
	f.statusSets[id] = status
	return nil
}

func (f *fakeBookingStore) AppendAudit(_ context.Context, _ pgx.Tx, appointmentID, action, _, _ string) error {
	f.audits = append(f.audits, appointmentID+":"+action)
	return nil
}

func (f *fakeBookingStore) ListAudit(context.Context, string) ([]model.AuditEntry, error) {
	return nil, nil
}

func (f *fakeBookingStore) BookedSlots(context.Context, string, string) (map[string]bool, error) {
	if f.booked == nil {
		return map[string]bool{}, nil
	}
	return f.booked, nil
}

func (f *fakeBookingStore) ListByRequester(context.Context, string, model.Status, int) ([]model.Appointment, error) {
	return nil, nil
}

func (f *fakeBookingStore) ListNotifications(context.Context, string) ([]model.NotificationEntry, error) {
	return nil, nil
}

type fakeScheduleStore struct {
	cal   schedule.Calendar
	staff map[string]bool
}

func (f *fakeScheduleStore) LoadCalendar(context.Context) (schedule.Calendar, error) {
	return f.cal, nil
}

func (f *fakeScheduleStore) LoadOverride(context.Context, string) (schedule.Override, error) {
	return nil, nil
}

func (f *fakeScheduleStore) StaffExists(_ context.Context, id string) (bool, error) {
	return f.staff[id], nil
}

type fakeOutbox struct {
	events []outbox.Event
}

func (f *fakeOutbox) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}

// Monday morning; the grid days in these tests are the Tuesday and Wednesday
// after it.
var testNow = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

func everyDayOpen() schedule.Calendar {
	cal := schedule.Calendar{SlotMinutes: 30, Holidays: map[string]bool{}}
	for wd := range cal.Hours {
		cal.Hours[wd] = schedule.Window{Open: true, StartMinute: 540, EndMinute: 1020}
	}
	return cal
}

func newTestBookingHandler(repo *fakeBookingStore, settings *fakeScheduleStore, ob *fakeOutbox) *BookingHandler {
	h := NewBookingHandler(repo, settings, ob, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return testNow }
	return h
}

func authedRequest(t *testing.T, method, target string, body any, actor auth.Actor) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, target, rd)
	return r.WithContext(auth.ContextWithActor(r.Context(), actor))
}

const (
	ownerID    = "5f0d2c6a-4b1e-4c8f-9a3d-7e2b1c0d9f41"
	apptID     = "b3a1d8e2-6c4f-4a9b-8d7e-1f2a3b4c5d6e"
	strangerID = "0c9b8a7d-6e5f-4d3c-2b1a-9f8e7d6c5b4a"
)

func existingAppointment(status model.Status) model.Appointment {
	return model.Appointment{
		ID:              apptID,
		RequesterID:     ownerID,
		CustomerName:    "Asha Rao",
		CustomerEmail:   "asha@example.com",
		CustomerPhone:   "+15550100",
		Day:             "2026-03-03",
		TimeSlot:        "10:00",
		DurationMinutes: 30,
		Status:          status,
		CreatedAt:       testNow,
	}
}

func TestSlotsReadsDateParam(t *testing.T) {
	repo := &fakeBookingStore{}
	h := newTestBookingHandler(repo, &fakeScheduleStore{cal: everyDayOpen()}, &fakeOutbox{})

	rr := httptest.NewRecorder()
	h.Slots(rr, httptest.NewRequest("GET", "/api/v1/slots?date=2026-03-03", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var items []slotItem
	if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 16 {
		t.Fatalf("slots = %d, want 16", len(items))
	}
	if items[0].Time != "09:00" || !items[0].Available {
		t.Errorf("first slot = %+v", items[0])
	}

	rr = httptest.NewRecorder()
	h.Slots(rr, httptest.NewRequest("GET", "/api/v1/slots", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing date should be 400, got %d", rr.Code)
	}
}

func TestRescheduleValidatesBeforeReserving(t *testing.T) {
	owner := auth.Actor{ID: ownerID, Role: auth.RoleCustomer}
	body := map[string]string{"appointment_id": apptID, "day": "2026-03-04", "time_slot": "09:30"}

	cases := []struct {
		name     string
		appt     model.Appointment
		haveAppt bool
		actor    auth.Actor
		want     int
	}{
		{"unknown appointment", model.Appointment{}, false, owner, http.StatusNotFound},
		{"foreign customer", existingAppointment(model.StatusConfirmed), true,
			auth.Actor{ID: strangerID, Role: auth.RoleCustomer}, http.StatusForbidden},
		{"cancelled", existingAppointment(model.StatusCancelled), true, owner, http.StatusUnprocessableEntity},
		{"completed", existingAppointment(model.StatusCompleted), true, owner, http.StatusUnprocessableEntity},
		{"rejected", existingAppointment(model.StatusRejected), true, owner, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		repo := &fakeBookingStore{appts: map[string]model.Appointment{}}
		if tc.haveAppt {
			repo.appts[apptID] = tc.appt
		}
		ob := &fakeOutbox{}
		h := newTestBookingHandler(repo, &fakeScheduleStore{cal: everyDayOpen()}, ob)

		rr := httptest.NewRecorder()
		h.Reschedule(rr, authedRequest(t, "POST", "/api/v1/appointments/reschedule", body, tc.actor))
		if rr.Code != tc.want {
			t.Errorf("%s: status = %d, want %d (body %s)", tc.name, rr.Code, tc.want, rr.Body.String())
		}
		if repo.reserveCalls != 0 {
			t.Errorf("%s: reserve was attempted %d times", tc.name, repo.reserveCalls)
		}
		if len(repo.statusSets) != 0 || len(ob.events) != 0 {
			t.Errorf("%s: rejected request mutated state", tc.name)
		}
	}
}

func TestRescheduleConflictLeavesOriginalUntouched(t *testing.T) {
	repo := &fakeBookingStore{
		appts:      map[string]model.Appointment{apptID: existingAppointment(model.StatusConfirmed)},
		reserveErr: storage.ErrSlotTaken,
	}
	ob := &fakeOutbox{}
	h := newTestBookingHandler(repo, &fakeScheduleStore{cal: everyDayOpen()}, ob)

	rr := httptest.NewRecorder()
	h.Reschedule(rr, authedRequest(t, "POST", "/api/v1/appointments/reschedule",
		map[string]string{"appointment_id": apptID, "day": "2026-03-04", "time_slot": "09:30"},
		auth.Actor{ID: ownerID, Role: auth.RoleCustomer}))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	if len(repo.statusSets) != 0 {
		t.Errorf("original appointment was retired despite the conflict: %v", repo.statusSets)
	}
	if len(ob.events) != 0 {
		t.Errorf("conflict still staged %d events", len(ob.events))
	}
}

func TestRescheduleMovesAppointment(t *testing.T) {
	repo := &fakeBookingStore{
		appts: map[string]model.Appointment{apptID: existingAppointment(model.StatusConfirmed)},
	}
	ob := &fakeOutbox{}
	h := newTestBookingHandler(repo, &fakeScheduleStore{cal: everyDayOpen()}, ob)

	rr := httptest.NewRecorder()
	h.Reschedule(rr, authedRequest(t, "POST", "/api/v1/appointments/reschedule",
		map[string]string{"appointment_id": apptID, "day": "2026-03-04", "time_slot": "09:30"},
		auth.Actor{ID: ownerID, Role: auth.RoleCustomer}))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var got appointmentItem
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Day != "2026-03-04" || got.TimeSlot != "09:30" {
		t.Errorf("new slot = %s %s", got.Day, got.TimeSlot)
	}
	if got.AppointmentID == apptID {
		t.Error("reschedule should create a new appointment id")
	}
	if repo.statusSets[apptID] != model.StatusRescheduled {
		t.Errorf("old appointment status = %s, want rescheduled", repo.statusSets[apptID])
	}
	if len(repo.reserved) != 1 || repo.reserved[0].CustomerEmail != "asha@example.com" {
		t.Fatalf("reserved = %+v", repo.reserved)
	}

	if len(ob.events) != 1 || ob.events[0].EventType != "booking.appointment.rescheduled.v1" {
		t.Fatalf("events = %+v", ob.events)
	}
	var payload map[string]any
	if err := json.Unmarshal(ob.events[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["old_appointment_id"] != apptID || payload["new_day"] != "2026-03-04" {
		t.Errorf("payload = %v", payload)
	}
	if payload["customer_name"] != "Asha Rao" || payload["customer_phone"] != "+15550100" {
		t.Errorf("payload is missing contact fields: %v", payload)
	}
}

func TestStatusChangeEventCarriesContact(t *testing.T) {
	repo := &fakeBookingStore{
		appts: map[string]model.Appointment{apptID: existingAppointment(model.StatusPending)},
	}
	ob := &fakeOutbox{}
	h := newTestBookingHandler(repo, &fakeScheduleStore{cal: everyDayOpen()}, ob)

	rr := httptest.NewRecorder()
	h.UpdateStatus(rr, authedRequest(t, "POST", "/api/v1/appointments/status",
		map[string]string{"appointment_id": apptID, "status": "confirmed"},
		auth.Actor{ID: strangerID, Role: auth.RoleStaff}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if len(ob.events) != 1 {
		t.Fatalf("events = %d, want 1", len(ob.events))
	}
	var payload map[string]any
	if err := json.Unmarshal(ob.events[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["to_status"] != "confirmed" {
		t.Errorf("to_status = %v", payload["to_status"])
	}
	if payload["customer_name"] != "Asha Rao" || payload["customer_phone"] != "+15550100" {
		t.Errorf("payload is missing contact fields: %v", payload)
	}
}
