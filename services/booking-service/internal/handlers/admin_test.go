package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avani-k/slotbook/libs/auth"
	"github.com/avani-k/slotbook/services/booking-service/internal/storage"
)

func TestHoursRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  hoursRequest
		ok   bool
	}{
		{"open weekday", hoursRequest{Weekday: 1, Open: true, StartTime: "09:00", EndTime: "17:00"}, true},
		{"closed day skips time checks", hoursRequest{Weekday: 0, Open: false}, true},
		{"weekday too large", hoursRequest{Weekday: 7, Open: true, StartTime: "09:00", EndTime: "17:00"}, false},
		{"negative weekday", hoursRequest{Weekday: -1, Open: false}, false},
		{"bad start time", hoursRequest{Weekday: 1, Open: true, StartTime: "nine", EndTime: "17:00"}, false},
		{"end before start", hoursRequest{Weekday: 1, Open: true, StartTime: "17:00", EndTime: "09:00"}, false},
		{"zero-length window", hoursRequest{Weekday: 1, Open: true, StartTime: "09:00", EndTime: "09:00"}, false},
	}
	for _, tc := range cases {
		msg := tc.req.validate()
		if tc.ok && msg != "" {
			t.Errorf("%s: unexpected error %q", tc.name, msg)
		}
		if !tc.ok && msg == "" {
			t.Errorf("%s: expected a validation error", tc.name)
		}
	}

	req := hoursRequest{Weekday: 2, Open: true, StartTime: "09:30", EndTime: "12:00"}
	if msg := req.validate(); msg != "" {
		t.Fatalf("validate: %s", msg)
	}
	if req.startMinute != 570 || req.endMinute != 720 {
		t.Fatalf("minutes = %d-%d, want 570-720", req.startMinute, req.endMinute)
	}
}

func TestAdminFilterFromQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/admin/appointments?from=2026-03-01&to=2026-03-07&status=confirmed&limit=25&offset=50", nil)
	f, msg := adminFilterFromQuery(r)
	if msg != "" {
		t.Fatalf("unexpected error: %s", msg)
	}
	if f.FromDay != "2026-03-01" || f.ToDay != "2026-03-07" {
		t.Errorf("day range = %s..%s", f.FromDay, f.ToDay)
	}
	if string(f.Status) != "confirmed" {
		t.Errorf("status = %s", f.Status)
	}
	if f.Limit != 25 || f.Offset != 50 {
		t.Errorf("paging = limit %d offset %d", f.Limit, f.Offset)
	}

	r = httptest.NewRequest("GET", "/api/v1/admin/appointments", nil)
	f, msg = adminFilterFromQuery(r)
	if msg != "" {
		t.Fatalf("empty query should validate, got %s", msg)
	}
	if f.Limit != 100 {
		t.Errorf("default limit = %d, want 100", f.Limit)
	}

	for _, q := range []string{
		"from=bad-date",
		"status=shipped",
		"staff_id=not-a-uuid",
		"limit=0",
		"limit=501",
		"offset=-1",
	} {
		r = httptest.NewRequest("GET", "/api/v1/admin/appointments?"+q, nil)
		if _, msg := adminFilterFromQuery(r); msg == "" {
			t.Errorf("query %q should fail validation", q)
		}
	}
}

type fakeStatsStore struct {
	byStatus map[string]int
	perDay   []storage.DayCount
	busiest  []storage.SlotCount
	rows     []storage.ExportRow
}

func (f *fakeStatsStore) CountByStatus(context.Context) (map[string]int, error) {
	return f.byStatus, nil
}

func (f *fakeStatsStore) CountPerDay(context.Context, string, string) ([]storage.DayCount, error) {
	return f.perDay, nil
}

func (f *fakeStatsStore) BusiestSlots(context.Context, int) ([]storage.SlotCount, error) {
	return f.busiest, nil
}

func (f *fakeStatsStore) ExportRows(context.Context, string, string) ([]storage.ExportRow, error) {
	return f.rows, nil
}

func newTestAdminHandler(stats *fakeStatsStore) *AdminHandler {
	h := NewAdminHandler(nil, nil, stats, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return testNow }
	return h
}

var adminActor = auth.Actor{ID: strangerID, Role: auth.RoleAdmin}

func TestExportWritesCSV(t *testing.T) {
	h := newTestAdminHandler(&fakeStatsStore{rows: []storage.ExportRow{{
		ID:           apptID,
		Day:          "2026-03-03",
		TimeSlot:     "10:00",
		Status:       "confirmed",
		StaffName:    "Maya Iyer",
		CustomerName: "Asha Rao",
		CreatedAt:    "2026-03-02T08:00:00Z",
	}}})

	rr := httptest.NewRecorder()
	h.Export(rr, authedRequest(t, "GET", "/api/v1/admin/appointments/export", nil, adminActor))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="appointments.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(records))
	}
	wantHeader := []string{"appointment_id", "day", "time_slot", "status", "staff_name", "customer_name", "created_at"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}
	row := records[1]
	if row[0] != apptID || row[1] != "2026-03-03" || row[2] != "10:00" || row[3] != "confirmed" {
		t.Errorf("row = %v", row)
	}
	if row[4] != "Maya Iyer" || row[5] != "Asha Rao" || row[6] != "2026-03-02T08:00:00Z" {
		t.Errorf("row = %v", row)
	}
}

func TestExportRequiresAdmin(t *testing.T) {
	h := newTestAdminHandler(&fakeStatsStore{})
	rr := httptest.NewRecorder()
	h.Export(rr, authedRequest(t, "GET", "/api/v1/admin/appointments/export", nil,
		auth.Actor{ID: ownerID, Role: auth.RoleCustomer}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestStatsAssemblesSummary(t *testing.T) {
	h := newTestAdminHandler(&fakeStatsStore{
		byStatus: map[string]int{"pending": 2, "confirmed": 5},
		perDay:   []storage.DayCount{{Day: "2026-03-01", Count: 3}, {Day: "2026-03-02", Count: 4}},
		busiest:  []storage.SlotCount{{TimeSlot: "10:00", Count: 4}},
	})

	rr := httptest.NewRecorder()
	h.Stats(rr, authedRequest(t, "GET", "/api/v1/admin/stats", nil, adminActor))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var got statsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ByStatus["pending"] != 2 || got.ByStatus["confirmed"] != 5 {
		t.Errorf("by_status = %v", got.ByStatus)
	}
	if len(got.PerDay) != 2 || got.PerDay[0].Day != "2026-03-01" || got.PerDay[1].Count != 4 {
		t.Errorf("per_day = %v", got.PerDay)
	}
	if len(got.BusiestSlots) != 1 || got.BusiestSlots[0].TimeSlot != "10:00" {
		t.Errorf("busiest_slots = %v", got.BusiestSlots)
	}

	rr = httptest.NewRecorder()
	h.Stats(rr, authedRequest(t, "GET", "/api/v1/admin/stats?from=2026-03-05&to=2026-03-01", nil, adminActor))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("inverted range should be 400, got %d", rr.Code)
	}
}
