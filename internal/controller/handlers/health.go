package handlers

import (
	"net/http"

	"tileexport/internal/store"
)

// Healthz is a liveness probe.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJson(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readyResponse is returned by Readyz once the task table can be queried.
type readyResponse struct {
	Status string                     `json:"status"`
	Tasks  map[store.TaskStatus]int64 `json:"tasks"`
}

// Readyz is a readiness probe. The database must answer and the task
// table must be migrated; the current task counts are reported.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.log(r.Context()).Warn("readiness check failed", "check", "ping", "error", err)
		h.httpError(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}

	counts, err := h.store.CountByStatus(r.Context())
	if err != nil {
		h.log(r.Context()).Warn("readiness check failed", "check", "tasks", "error", err)
		h.httpError(w, "Task store unavailable", http.StatusServiceUnavailable)
		return
	}
	if counts == nil {
		counts = map[store.TaskStatus]int64{}
	}

	h.respondJson(w, http.StatusOK, readyResponse{Status: "ready", Tasks: counts})
}
