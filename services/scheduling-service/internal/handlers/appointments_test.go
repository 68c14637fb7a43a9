package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/appointments"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/directory"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/storage/memory"
)

const testOwner = "11111111-1111-1111-1111-111111111111"

var testDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type noopSink struct{}

func (noopSink) Record(_ context.Context, _ appointments.AuditEvent) {}

func newTestHandler() (*AppointmentHandler, *memory.DB) {
	db := memory.New()
	db.PutService(directory.Service{
		ID: "svc-cut", OwnerID: testOwner, Name: "Haircut", DurationMinutes: 60, StaffType: "barber",
	})
	db.PutStaff(directory.Staff{
		ID: "staff-a", OwnerID: testOwner, Name: "Alice", ServiceType: "barber",
		DailyCapacity: 8, AvailabilityStatus: model.StaffAvailable, CreatedAt: testDay,
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := appointments.NewService(db, noopSink{}, logger)
	return NewAppointmentHandler(svc, logger), db
}

func doRequest(h http.HandlerFunc, method, target, body string, withOwner bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if withOwner {
		req.Header.Set(OwnerHeader, testOwner)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestCreate_Scheduled(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"customer_name":"Carol","service_id":"svc-cut","start_time":"2026-03-02T09:00:00Z","staff_id":"staff-a"}`
	rec := doRequest(h.Appointments, http.MethodPost, "/api/v1/appointments", body, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Appointment struct {
			Status  string  `json:"status"`
			StaffID *string `json:"staff_id"`
			EndTime string  `json:"end_time"`
		} `json:"appointment"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Appointment.Status != "SCHEDULED" {
		t.Fatalf("expected SCHEDULED, got %s", resp.Appointment.Status)
	}
	if resp.Appointment.EndTime != "2026-03-02T10:00:00Z" {
		t.Fatalf("expected computed end time, got %s", resp.Appointment.EndTime)
	}
	if resp.Message != "Appointment scheduled successfully" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestCreate_MissingOwnerHeader(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"customer_name":"Carol","service_id":"svc-cut","start_time":"2026-03-02T09:00:00Z"}`
	rec := doRequest(h.Appointments, http.MethodPost, "/api/v1/appointments", body, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreate_UnknownService404(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"customer_name":"Carol","service_id":"nope","start_time":"2026-03-02T09:00:00Z"}`
	rec := doRequest(h.Appointments, http.MethodPost, "/api/v1/appointments", body, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Service not found") {
		t.Fatalf("expected reason in body, got %q", rec.Body.String())
	}
}

func TestCreate_BadStartTime(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"customer_name":"Carol","service_id":"svc-cut","start_time":"yesterday"}`
	rec := doRequest(h.Appointments, http.MethodPost, "/api/v1/appointments", body, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAppointments_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler()
	rec := doRequest(h.Appointments, http.MethodDelete, "/api/v1/appointments", "", true)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAssign_ConflictWhenQueueEmpty(t *testing.T) {
	h, _ := newTestHandler()

	rec := doRequest(h.Assign, http.MethodPost, "/api/v1/queue/assign", `{"staff_id":"staff-a"}`, true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetAfterCreate(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"customer_name":"Carol","service_id":"svc-cut","start_time":"2026-03-02T09:00:00Z","staff_id":"staff-a"}`
	rec := doRequest(h.Appointments, http.MethodPost, "/api/v1/appointments", body, true)
	var created struct {
		Appointment struct {
			ID string `json:"id"`
		} `json:"appointment"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	got := doRequest(h.Get, http.MethodGet, "/api/v1/appointments/get?id="+created.Appointment.ID, "", true)
	if got.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", got.Code)
	}

	missing := doRequest(h.Get, http.MethodGet, "/api/v1/appointments/get?id=nope", "", true)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", missing.Code)
	}
}

func TestWaitingList(t *testing.T) {
	h, _ := newTestHandler()

	// Requesting an unknown staff member fails eligibility and parks the
	// appointment in the queue.
	body := `{"customer_name":"Carol","service_id":"svc-cut","start_time":"2026-03-02T09:00:00Z","staff_id":"ghost"}`
	rec := doRequest(h.Appointments, http.MethodPost, "/api/v1/appointments", body, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	list := doRequest(h.Waiting, http.MethodGet, "/api/v1/queue", "", true)
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", list.Code)
	}
	var items []struct {
		Status        string `json:"status"`
		QueuePosition *int   `json:"queue_position"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].Status != "WAITING" || items[0].QueuePosition == nil || *items[0].QueuePosition != 1 {
		t.Fatalf("unexpected waiting list %+v", items)
	}
}

func TestStaffLoad(t *testing.T) {
	h, _ := newTestHandler()

	rec := doRequest(h.StaffLoad, http.MethodGet, "/api/v1/staff/load?service_id=svc-cut&date=2026-03-02", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var items []struct {
		StaffID        string `json:"staff_id"`
		AvailableSlots int    `json:"available_slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].StaffID != "staff-a" || items[0].AvailableSlots != 8 {
		t.Fatalf("unexpected staff load %+v", items)
	}
}
