package handlers

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avani-k/slotbook/libs/auth"
	"github.com/avani-k/slotbook/libs/httpx"
	"github.com/avani-k/slotbook/services/booking-service/internal/model"
	"github.com/avani-k/slotbook/services/booking-service/internal/schedule"
	"github.com/avani-k/slotbook/services/booking-service/internal/storage"
	"github.com/google/uuid"
)

type AdminHandler struct {
	settings settingsStore
	repo     appointmentLister
	stats    statsStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewAdminHandler(settings settingsStore, repo appointmentLister, stats statsStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		settings: settings,
		repo:     repo,
		stats:    stats,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return auth.Actor{}, false
	}
	if !actor.IsAdmin() {
		httpx.WriteError(w, http.StatusForbidden, "admin role required")
		return auth.Actor{}, false
	}
	return actor, true
}

type settingsPayload struct {
	Name          string `json:"name"`
	Timezone      string `json:"timezone"`
	SlotMinutes   int    `json:"slot_duration_minutes"`
	BufferMinutes int    `json:"buffer_minutes"`
}

// Settings reads or replaces the business-wide booking configuration.
// Changing the slot sizing only affects future grids; existing appointments
// keep the duration they were booked with.
func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		s, err := h.settings.Settings(r.Context())
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, settingsPayload{
			Name:          s.Name,
			Timezone:      s.Timezone,
			SlotMinutes:   s.SlotMinutes,
			BufferMinutes: s.BufferMinutes,
		})
	case http.MethodPut:
		var req settingsPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Timezone = strings.TrimSpace(req.Timezone)
		if req.Name == "" || req.Timezone == "" {
			httpx.WriteError(w, http.StatusBadRequest, "name and timezone are required")
			return
		}
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "unknown timezone")
			return
		}
		if req.SlotMinutes < 5 || req.SlotMinutes > 480 {
			httpx.WriteError(w, http.StatusBadRequest, "slot_duration_minutes must be between 5 and 480")
			return
		}
		if req.BufferMinutes < 0 || req.BufferMinutes > 120 {
			httpx.WriteError(w, http.StatusBadRequest, "buffer_minutes must be between 0 and 120")
			return
		}
		if err := h.settings.UpdateSettings(r.Context(), req.Name, req.Timezone, req.SlotMinutes, req.BufferMinutes); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "failed to update settings")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, req)
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type hoursRequest struct {
	Weekday     int    `json:"weekday"` // 0 = Sunday
	Open        bool   `json:"open"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	startMinute int
	endMinute   int
}

func (req *hoursRequest) validate() string {
	if req.Weekday < 0 || req.Weekday > 6 {
		return "weekday must be 0-6"
	}
	if !req.Open {
		return ""
	}
	start, err := schedule.ParseClock(strings.TrimSpace(req.StartTime))
	if err != nil {
		return err.Error()
	}
	end, err := schedule.ParseClock(strings.TrimSpace(req.EndTime))
	if err != nil {
		return err.Error()
	}
	if end <= start {
		return "end_time must be after start_time"
	}
	req.startMinute = start
	req.endMinute = end
	return ""
}

func (h *AdminHandler) Hours(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req hoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if msg := req.validate(); msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.settings.UpsertHours(r.Context(), req.Weekday, req.Open, req.startMinute, req.endMinute); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update hours")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"weekday": req.Weekday, "open": req.Open})
}

type holidayRequest struct {
	Day         string `json:"day"`
	Description string `json:"description"`
}

func (h *AdminHandler) Holidays(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		holidays, err := h.settings.ListHolidays(r.Context())
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "failed to list holidays")
			return
		}
		items := make([]holidayRequest, 0, len(holidays))
		for _, hol := range holidays {
			items = append(items, holidayRequest{Day: hol.Day, Description: hol.Description})
		}
		httpx.WriteJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var req holidayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		day, err := schedule.ParseDay(strings.TrimSpace(req.Day))
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := h.settings.AddHoliday(r.Context(), day.String(), strings.TrimSpace(req.Description)); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "failed to add holiday")
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, holidayRequest{Day: day.String(), Description: req.Description})
	case http.MethodDelete:
		day, err := schedule.ParseDay(strings.TrimSpace(r.URL.Query().Get("day")))
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		removed, err := h.settings.RemoveHoliday(r.Context(), day.String())
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "failed to remove holiday")
			return
		}
		if !removed {
			httpx.WriteError(w, http.StatusNotFound, "holiday not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type staffRequest struct {
	StaffID string `json:"staff_id"`
	Name    string `json:"name"`
}

func (h *AdminHandler) Staff(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		members, err := h.settings.ListStaff(r.Context())
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "failed to list staff")
			return
		}
		type staffItem struct {
			StaffID  string `json:"staff_id"`
			Name     string `json:"name"`
			IsActive bool   `json:"is_active"`
		}
		items := make([]staffItem, 0, len(members))
		for _, m := range members {
			items = append(items, staffItem{StaffID: m.ID, Name: m.Name, IsActive: m.IsActive})
		}
		httpx.WriteJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var req staffRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		req.StaffID = strings.TrimSpace(req.StaffID)
		req.Name = strings.TrimSpace(req.Name)
		if _, err := uuid.Parse(req.StaffID); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "staff_id must be the member's user id")
			return
		}
		if req.Name == "" {
			httpx.WriteError(w, http.StatusBadRequest, "name is required")
			return
		}
		if err := h.settings.CreateStaff(r.Context(), req.StaffID, req.Name); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "failed to create staff")
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, req)
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type availabilityRequest struct {
	StaffID   string `json:"staff_id"`
	Weekday   int    `json:"weekday"`
	Available bool   `json:"available"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Availability sets one weekday of a staff member's weekly override. Staff
// members manage their own schedule; admins manage anyone's.
func (h *AdminHandler) Availability(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	if _, err := uuid.Parse(req.StaffID); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid staff_id")
		return
	}
	if !actor.IsAdmin() && !(actor.Role == auth.RoleStaff && actor.ID == req.StaffID) {
		httpx.WriteError(w, http.StatusForbidden, "cannot edit another member's availability")
		return
	}

	hr := hoursRequest{Weekday: req.Weekday, Open: req.Available, StartTime: req.StartTime, EndTime: req.EndTime}
	if msg := hr.validate(); msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	exists, err := h.settings.StaffExists(r.Context(), req.StaffID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load staff")
		return
	}
	if !exists {
		httpx.WriteError(w, http.StatusNotFound, "staff not found")
		return
	}
	if err := h.settings.UpsertAvailability(r.Context(), req.StaffID, req.Weekday, req.Available, hr.startMinute, hr.endMinute); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update availability")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, req)
}

// Appointments is the admin-wide listing with day range, status, and staff
// filters plus limit/offset paging.
func (h *AdminHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter, msg := adminFilterFromQuery(r)
	if msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	appts, err := h.repo.ListAdmin(r.Context(), filter)
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

func adminFilterFromQuery(r *http.Request) (storage.AdminFilter, string) {
	var f storage.AdminFilter
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		d, err := schedule.ParseDay(raw)
		if err != nil {
			return f, err.Error()
		}
		f.FromDay = d.String()
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		d, err := schedule.ParseDay(raw)
		if err != nil {
			return f, err.Error()
		}
		f.ToDay = d.String()
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			return f, "invalid status filter"
		}
		f.Status = status
	}
	if raw := strings.TrimSpace(q.Get("staff_id")); raw != "" {
		if _, err := uuid.Parse(raw); err != nil {
			return f, "invalid staff_id"
		}
		f.StaffID = raw
	}
	f.Limit = 100
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			return f, "limit must be 1-500"
		}
		f.Limit = n
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, "offset must be >= 0"
		}
		f.Offset = n
	}
	return f, ""
}

type statsResponse struct {
	ByStatus     map[string]int  `json:"by_status"`
	PerDay       []dayCountItem  `json:"per_day"`
	BusiestSlots []slotCountItem `json:"busiest_slots"`
}

type dayCountItem struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type slotCountItem struct {
	TimeSlot string `json:"time_slot"`
	Count    int    `json:"count"`
}

// Stats summarises booking volume: totals per status, per-day counts for
// the trailing week, and the three busiest slot times.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	today := schedule.DayOf(h.now())
	fromDay, toDay := today.AddDays(-6), today
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		d, err := schedule.ParseDay(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		fromDay = d
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		d, err := schedule.ParseDay(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		toDay = d
	}
	if toDay.Before(fromDay) {
		httpx.WriteError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	ctx := r.Context()
	byStatus, err := h.stats.CountByStatus(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	perDay, err := h.stats.CountPerDay(ctx, fromDay.String(), toDay.String())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	busiest, err := h.stats.BusiestSlots(ctx, 3)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	resp := statsResponse{
		ByStatus:     byStatus,
		PerDay:       make([]dayCountItem, 0, len(perDay)),
		BusiestSlots: make([]slotCountItem, 0, len(busiest)),
	}
	for _, c := range perDay {
		resp.PerDay = append(resp.PerDay, dayCountItem{Day: c.Day, Count: c.Count})
	}
	for _, c := range busiest {
		resp.BusiestSlots = append(resp.BusiestSlots, slotCountItem{TimeSlot: c.TimeSlot, Count: c.Count})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Export streams the appointment book as CSV for the optional day range.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var fromDay, toDay string
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		d, err := schedule.ParseDay(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		fromDay = d.String()
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		d, err := schedule.ParseDay(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		toDay = d.String()
	}

	rows, err := h.stats.ExportRows(r.Context(), fromDay, toDay)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to export appointments")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"appointment_id", "day", "time_slot", "status", "staff_name", "customer_name", "created_at"})
	for _, row := range rows {
		_ = cw.Write([]string{row.ID, row.Day, row.TimeSlot, row.Status, row.StaffName, row.CustomerName, row.CreatedAt})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("csv export write failed", "err", err)
	}
}
