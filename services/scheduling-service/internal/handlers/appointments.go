package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/appointments"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/scheduling"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/storage"
)

// OwnerHeader carries the authenticated owner id. The gateway verifies
// the JWT and injects it; requireAuth does the same when the service is
// exposed directly.
const OwnerHeader = "X-Owner-Id"

type AppointmentHandler struct {
	svc    *appointments.Service
	logger *slog.Logger
}

func NewAppointmentHandler(svc *appointments.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

type appointmentPayload struct {
	ID            string  `json:"id"`
	CustomerName  string  `json:"customer_name"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	Status        string  `json:"status"`
	QueuePosition *int    `json:"queue_position,omitempty"`
	StaffID       *string `json:"staff_id,omitempty"`
	ServiceID     string  `json:"service_id"`
}

type resultPayload struct {
	Appointment appointmentPayload `json:"appointment"`
	Message     string             `json:"message"`
}

func toPayload(p appointments.Projection) appointmentPayload {
	return appointmentPayload{
		ID:            p.ID,
		CustomerName:  p.CustomerName,
		StartTime:     p.StartTime.UTC().Format(time.RFC3339),
		EndTime:       p.EndTime.UTC().Format(time.RFC3339),
		Status:        p.Status,
		QueuePosition: p.QueuePosition,
		StaffID:       p.StaffID,
		ServiceID:     p.ServiceID,
	}
}

func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		http.Error(w, "missing owner identity", http.StatusUnauthorized)
		return "", false
	}
	return owner, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOpError maps orchestrator failure kinds onto HTTP statuses.
// Storage conflicts (the exclusion constraint firing under a race) also
// surface as 409.
func (h *AppointmentHandler) writeOpError(w http.ResponseWriter, err error) {
	switch appointments.KindOf(err) {
	case appointments.KindNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case appointments.KindBadRequest:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case appointments.KindConflict:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		h.logger.Error("appointment operation failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type createRequest struct {
	CustomerName string `json:"customer_name"`
	ServiceID    string `json:"service_id"`
	StartTime    string `json:"start_time"`
	StaffID      string `json:"staff_id"`
}

// Appointments serves POST (create) and GET (list) on the collection.
func (h *AppointmentHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AppointmentHandler) create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.CustomerName == "" || req.ServiceID == "" {
		http.Error(w, "customer_name and service_id required", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Create(r.Context(), owner, appointments.CreateInput{
		CustomerName: req.CustomerName,
		ServiceID:    req.ServiceID,
		StartTime:    startTime,
		StaffID:      req.StaffID,
	})
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resultPayload{Appointment: toPayload(res.Appointment), Message: res.Message})
}

func (h *AppointmentHandler) list(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	f := scheduling.ListFilter{
		StaffID: strings.TrimSpace(r.URL.Query().Get("staff_id")),
		Status:  strings.TrimSpace(r.URL.Query().Get("status")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		f.Day = &day
	}

	list, err := h.svc.List(r.Context(), owner, f)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	out := make([]appointmentPayload, 0, len(list))
	for _, p := range list {
		out = append(out, toPayload(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get serves GET /api/v1/appointments/get?id=...
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	p, err := h.svc.Get(r.Context(), owner, id)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(p))
}

type updateRequest struct {
	AppointmentID string  `json:"appointment_id"`
	CustomerName  *string `json:"customer_name"`
	StartTime     *string `json:"start_time"`
	StaffID       *string `json:"staff_id"`
	Status        *string `json:"status"`
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	in := appointments.UpdateInput{
		CustomerName: req.CustomerName,
		StaffID:      req.StaffID,
		Status:       req.Status,
	}
	if req.StartTime != nil {
		startTime, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		in.StartTime = &startTime
	}

	res, err := h.svc.Update(r.Context(), owner, req.AppointmentID, in)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultPayload{Appointment: toPayload(res.Appointment), Message: res.Message})
}

type idRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func (h *AppointmentHandler) lifecycle(w http.ResponseWriter, r *http.Request,
	op func(owner, id string) (appointments.Result, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	res, err := op(owner, req.AppointmentID)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultPayload{Appointment: toPayload(res.Appointment), Message: res.Message})
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(owner, id string) (appointments.Result, error) {
		return h.svc.Cancel(r.Context(), owner, id)
	})
}

func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(owner, id string) (appointments.Result, error) {
		return h.svc.Complete(r.Context(), owner, id)
	})
}

func (h *AppointmentHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(owner, id string) (appointments.Result, error) {
		return h.svc.MarkNoShow(r.Context(), owner, id)
	})
}

// Waiting serves GET /api/v1/queue: the waiting list in queue order.
func (h *AppointmentHandler) Waiting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListWaiting(r.Context(), owner)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	out := make([]appointmentPayload, 0, len(list))
	for _, p := range list {
		out = append(out, toPayload(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type assignRequest struct {
	StaffID string `json:"staff_id"`
}

// Assign serves POST /api/v1/queue/assign: hand the earliest eligible
// waiting appointment to the given staff member.
func (h *AppointmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.StaffID == "" {
		http.Error(w, "staff_id required", http.StatusBadRequest)
		return
	}
	res, err := h.svc.AssignFromQueue(r.Context(), owner, req.StaffID)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultPayload{Appointment: toPayload(res.Appointment), Message: res.Message})
}

type staffLoadItem struct {
	StaffID        string `json:"staff_id"`
	Name           string `json:"name"`
	CurrentLoad    int    `json:"current_load"`
	DailyCapacity  int    `json:"daily_capacity"`
	AvailableSlots int    `json:"available_slots"`
	IsAtCapacity   bool   `json:"is_at_capacity"`
}

// StaffLoad serves GET /api/v1/staff/load?service_id=...&date=...
func (h *AppointmentHandler) StaffLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		http.Error(w, "service_id required", http.StatusBadRequest)
		return
	}
	var date *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		date = &day
	}

	loads, err := h.svc.AvailableStaffWithLoad(r.Context(), owner, serviceID, date)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	out := make([]staffLoadItem, 0, len(loads))
	for _, l := range loads {
		out = append(out, staffLoadItem{
			StaffID:        l.ID,
			Name:           l.Name,
			CurrentLoad:    l.CurrentLoad,
			DailyCapacity:  l.DailyCapacity,
			AvailableSlots: l.AvailableSlots,
			IsAtCapacity:   l.IsAtCapacity,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
