package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tileexport/internal/store"
	"tileexport/pkg/api"

	"github.com/google/uuid"
)

// CreateModel handles POST /models.
// It validates the model location and geometry and records an export task.
func (h *Handlers) CreateModel(w http.ResponseWriter, r *http.Request) {
	var req api.ExportModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg := validateLocation(req.ModelPath, req.TilesetFilename, req.Metadata.Identifier); msg != "" {
		h.httpError(w, msg, http.StatusBadRequest)
		return
	}

	if len(req.Metadata.Geometry) > 0 {
		if ok := h.checkGeometry(w, req.Metadata.Geometry); !ok {
			return
		}
	}

	params, _ := json.Marshal(req.Metadata)
	description := req.Metadata.Description
	if description == "" {
		description = req.Metadata.Title
	}

	task := newTask(store.TaskTypeExport, req.ModelPath, req.TilesetFilename, req.Metadata.Identifier)
	task.Version = req.Metadata.Version
	task.Description = description
	task.Parameters = params

	h.createTask(w, r, task, api.ErrNameSaveExport)
}

// CreateIngestion handles POST /ingestions.
func (h *Handlers) CreateIngestion(w http.ResponseWriter, r *http.Request) {
	var req api.IngestModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg := validateLocation(req.ModelPath, req.TilesetFilename, req.Identifier); msg != "" {
		h.httpError(w, msg, http.StatusBadRequest)
		return
	}

	task := newTask(store.TaskTypeIngestion, req.ModelPath, req.TilesetFilename, req.Identifier)
	task.Description = "Ingestion of " + req.TilesetFilename

	h.createTask(w, r, task, api.ErrNameSaveLoad)
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request, task *store.Task, saveErrName string) {
	ctx := r.Context()

	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		h.namedError(w, saveErrName, "Internal database error", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	if err := h.store.CreateTask(ctx, tx, task); err != nil {
		if errors.Is(err, store.ErrDuplicatePath) {
			h.namedError(w, api.ErrNameDuplicatePath,
				fmt.Sprintf("Model path %s was already submitted", task.ModelPath), http.StatusConflict)
			return
		}
		h.log(ctx).Error("failed to create task", "type", task.Type, "error", err)
		h.namedError(w, saveErrName, "Failed to save task", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		h.namedError(w, saveErrName, "Failed to commit transaction", http.StatusInternalServerError)
		return
	}

	h.log(ctx).Info("task created", "task_id", task.ID, "type", task.Type, "model_path", task.ModelPath)
	h.respondJson(w, http.StatusCreated, api.SubmitResponse{ID: task.ID.String()})
}

// checkGeometry writes an error response and returns false when the
// geometry is malformed or its bbox area is out of bounds.
func (h *Handlers) checkGeometry(w http.ResponseWriter, raw json.RawMessage) bool {
	area, err := envelopeArea(raw)
	if err != nil {
		h.httpError(w, "Invalid geometry: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if h.limits.BBoxMinArea > 0 && area < h.limits.BBoxMinArea {
		h.namedError(w, api.ErrNameBBoxTooSmall,
			fmt.Sprintf("Bounding box area %g is below the minimum %g", area, h.limits.BBoxMinArea), http.StatusBadRequest)
		return false
	}
	if h.limits.BBoxMaxArea > 0 && area > h.limits.BBoxMaxArea {
		h.namedError(w, api.ErrNameBBoxTooLarge,
			fmt.Sprintf("Bounding box area %g exceeds the maximum %g", area, h.limits.BBoxMaxArea), http.StatusBadRequest)
		return false
	}
	return true
}

func validateLocation(modelPath, tilesetFilename, identifier string) string {
	switch {
	case !api.PathPattern.MatchString(modelPath):
		return "modelPath is missing or contains unsupported characters"
	case !strings.HasSuffix(tilesetFilename, ".json") || tilesetFilename == ".json":
		return "tilesetFilename must end with .json"
	case !api.PathPattern.MatchString(identifier):
		return "identifier is missing or contains unsupported characters"
	}
	return ""
}

func newTask(typ store.TaskType, modelPath, tilesetFilename, identifier string) *store.Task {
	now := time.Now().UTC()
	return &store.Task{
		ID:              uuid.New(),
		ResourceID:      identifier,
		Type:            typ,
		Status:          store.TaskStatusPending,
		ModelPath:       modelPath,
		TilesetFilename: tilesetFilename,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
