package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/audit"
)

type ActivityHandler struct {
	recorder *audit.Recorder
	logger   *slog.Logger
}

func NewActivityHandler(recorder *audit.Recorder, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{recorder: recorder, logger: logger}
}

// List serves GET /api/v1/activity?limit=...
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.recorder.ListRecent(r.Context(), owner, limit)
	if err != nil {
		h.logger.Error("activity list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
