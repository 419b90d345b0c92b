package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"tileexport/internal/store"
	"tileexport/pkg/api"
)

const maxListLimit = 1000

var knownStatuses = map[string]store.TaskStatus{
	api.StatusPending:    store.TaskStatusPending,
	api.StatusInProgress: store.TaskStatusInProgress,
	api.StatusCompleted:  store.TaskStatusCompleted,
	api.StatusFailed:     store.TaskStatusFailed,
}

// ListJobs handles GET /jobs.
// Optional query parameters: status (comma separated) and limit.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxListLimit {
			h.httpError(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var statuses []store.TaskStatus
	if s := r.URL.Query().Get("status"); s != "" {
		for _, name := range strings.Split(s, ",") {
			st, ok := knownStatuses[strings.TrimSpace(name)]
			if !ok {
				h.httpError(w, "Unknown status: "+name, http.StatusBadRequest)
				return
			}
			statuses = append(statuses, st)
		}
	}

	tasks, err := h.store.ListTasks(ctx, statuses, limit)
	if err != nil {
		h.log(ctx).Error("failed to list tasks", "error", err)
		h.namedError(w, api.ErrNameGeneral, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	resp := make([]api.JobResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, t.Response())
	}
	h.respondJson(w, http.StatusOK, resp)
}
