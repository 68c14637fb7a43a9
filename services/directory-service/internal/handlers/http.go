package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sajid-hossain/apptsched/services/directory-service/internal/outbox"
	"github.com/sajid-hossain/apptsched/services/directory-service/internal/storage"
)

// Service durations are bounded to keep slot math sane.
const (
	minDurationMinutes = 5
	maxDurationMinutes = 480
)

type Handler struct {
	repo   *storage.Repository
	outbox *outbox.Repository
	logger *slog.Logger
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, outbox: outboxRepo, logger: logger}
}

func ownerIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Owner-Id"))
}

type servicePayload struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	StaffType       string `json:"staff_type"`
	CreatedAt       string `json:"created_at"`
}

// Services serves POST (create) and GET (list) on /api/v1/services.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createService(w, r)
	case http.MethodGet:
		h.listServices(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name            string `json:"name"`
		DurationMinutes int    `json:"duration_minutes"`
		StaffType       string `json:"staff_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.StaffType = strings.TrimSpace(req.StaffType)
	if req.Name == "" || req.StaffType == "" {
		http.Error(w, "name and staff_type required", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes < minDurationMinutes || req.DurationMinutes > maxDurationMinutes {
		http.Error(w, "duration_minutes must be between 5 and 480", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateService(r.Context(), ownerID, req.Name, req.DurationMinutes, req.StaffType)
	if err != nil {
		h.logger.Error("service create failed", "err", err)
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}
	services, err := h.repo.ListServices(r.Context(), ownerID, 100)
	if err != nil {
		h.logger.Error("service list failed", "err", err)
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	out := make([]servicePayload, 0, len(services))
	for _, s := range services {
		out = append(out, servicePayload{
			ID:              s.ID,
			Name:            s.Name,
			DurationMinutes: s.DurationMinutes,
			StaffType:       s.StaffType,
			CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

type staffPayload struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	ServiceType        string `json:"service_type"`
	DailyCapacity      int    `json:"daily_capacity"`
	AvailabilityStatus string `json:"availability_status"`
	CreatedAt          string `json:"created_at"`
}

// Staff serves POST (create) and GET (list) on /api/v1/staff.
func (h *Handler) Staff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createStaff(w, r)
	case http.MethodGet:
		h.listStaff(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createStaff(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name          string `json:"name"`
		ServiceType   string `json:"service_type"`
		DailyCapacity int    `json:"daily_capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	if req.Name == "" || req.ServiceType == "" {
		http.Error(w, "name and service_type required", http.StatusBadRequest)
		return
	}
	if req.DailyCapacity <= 0 {
		http.Error(w, "daily_capacity must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateStaff(ctx, tx, ownerID, req.Name, req.ServiceType, req.DailyCapacity)
	if err != nil {
		h.logger.Error("staff create failed", "err", err)
		http.Error(w, "failed to create staff", http.StatusInternalServerError)
		return
	}
	if err := h.emitStaffUpdated(ctx, tx, ownerID, id, "AVAILABLE"); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}
	staff, err := h.repo.ListStaff(r.Context(), ownerID, 100)
	if err != nil {
		h.logger.Error("staff list failed", "err", err)
		http.Error(w, "failed to list staff", http.StatusInternalServerError)
		return
	}
	out := make([]staffPayload, 0, len(staff))
	for _, s := range staff {
		out = append(out, staffPayload{
			ID:                 s.ID,
			Name:               s.Name,
			ServiceType:        s.ServiceType,
			DailyCapacity:      s.DailyCapacity,
			AvailabilityStatus: s.AvailabilityStatus,
			CreatedAt:          s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// UpdateStaff serves POST /api/v1/staff/update: patch name, type,
// capacity or availability. Every change announces itself on the staff
// topic so schedulers can react (a leave return drains the queue).
func (h *Handler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		StaffID            string  `json:"staff_id"`
		Name               *string `json:"name"`
		ServiceType        *string `json:"service_type"`
		DailyCapacity      *int    `json:"daily_capacity"`
		AvailabilityStatus *string `json:"availability_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.StaffID == "" {
		http.Error(w, "staff_id required", http.StatusBadRequest)
		return
	}
	if req.AvailabilityStatus != nil {
		switch *req.AvailabilityStatus {
		case "AVAILABLE", "ON_LEAVE":
		default:
			http.Error(w, "availability_status must be AVAILABLE or ON_LEAVE", http.StatusBadRequest)
			return
		}
	}
	if req.DailyCapacity != nil && *req.DailyCapacity <= 0 {
		http.Error(w, "daily_capacity must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	staff, err := h.repo.GetStaffForUpdate(ctx, tx, ownerID, req.StaffID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "staff not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load staff", http.StatusInternalServerError)
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		staff.Name = strings.TrimSpace(*req.Name)
	}
	if req.ServiceType != nil && strings.TrimSpace(*req.ServiceType) != "" {
		staff.ServiceType = strings.TrimSpace(*req.ServiceType)
	}
	if req.DailyCapacity != nil {
		staff.DailyCapacity = *req.DailyCapacity
	}
	if req.AvailabilityStatus != nil {
		staff.AvailabilityStatus = *req.AvailabilityStatus
	}

	if err := h.repo.UpdateStaff(ctx, tx, staff); err != nil {
		h.logger.Error("staff update failed", "err", err)
		http.Error(w, "failed to update staff", http.StatusInternalServerError)
		return
	}
	if err := h.emitStaffUpdated(ctx, tx, ownerID, staff.ID, staff.AvailabilityStatus); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) emitStaffUpdated(ctx context.Context, tx pgx.Tx, ownerID, staffID, status string) error {
	payload, err := json.Marshal(map[string]any{
		"owner_id":            ownerID,
		"staff_id":            staffID,
		"availability_status": status,
		"updated_at":          time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "staff",
		AggregateID:   staffID,
		EventType:     outbox.TopicStaffUpdated,
		Payload:       payload,
	})
}
