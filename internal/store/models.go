// Package store contains the database layer for the job service.
package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"tileexport/pkg/api"
)

// ErrDuplicatePath is returned when a model path was already submitted for
// the same task type.
var ErrDuplicatePath = errors.New("model path already submitted")

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = api.StatusPending
	TaskStatusInProgress TaskStatus = api.StatusInProgress
	TaskStatusCompleted  TaskStatus = api.StatusCompleted
	TaskStatusFailed     TaskStatus = api.StatusFailed
)

// TaskType distinguishes exports from ingestions.
type TaskType string

const (
	TaskTypeExport    TaskType = "Export3DModel"
	TaskTypeIngestion TaskType = "Ingestion3DModel"
)

// Task is one export or ingestion tracked by the service.
type Task struct {
	ID              uuid.UUID
	ResourceID      string
	Version         string
	Type            TaskType
	Description     string
	Status          TaskStatus
	Reason          string
	ModelPath       string
	TilesetFilename string
	Parameters      json.RawMessage
	Percentage      float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Response converts the task to its GET /jobs form.
func (t Task) Response() api.JobResponse {
	return api.JobResponse{
		ID:           t.ID.String(),
		ResourceID:   t.ResourceID,
		Version:      t.Version,
		Type:         string(t.Type),
		Description:  t.Description,
		Status:       string(t.Status),
		Reason:       t.Reason,
		Parameters:   t.Parameters,
		CreationTime: t.CreatedAt,
		UpdateTime:   t.UpdatedAt,
		Percentage:   t.Percentage,
	}
}
