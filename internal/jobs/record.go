// Package jobs holds the job records tracked by the status view.
package jobs

import (
	"encoding/json"
	"time"

	"tileexport/pkg/api"
)

// Status represents the state of an export or ingestion job.
type Status string

const (
	StatusPending    Status = api.StatusPending
	StatusInProgress Status = api.StatusInProgress
	StatusCompleted  Status = api.StatusCompleted
	StatusFailed     Status = api.StatusFailed
)

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is a single tracked unit of work.
// ID is assigned by the backend and never changes.
type Record struct {
	ID           string
	ResourceID   string
	Version      string
	Type         string
	Description  string
	Status       Status
	Reason       string
	Parameters   json.RawMessage
	CreationTime time.Time
	UpdateTime   time.Time
	Percentage   float64
}

// FromResponse converts a wire job into a Record.
func FromResponse(r api.JobResponse) Record {
	return Record{
		ID:           r.ID,
		ResourceID:   r.ResourceID,
		Version:      r.Version,
		Type:         r.Type,
		Description:  r.Description,
		Status:       Status(r.Status),
		Reason:       r.Reason,
		Parameters:   r.Parameters,
		CreationTime: r.CreationTime,
		UpdateTime:   r.UpdateTime,
		Percentage:   r.Percentage,
	}
}

// FromResponses converts a GET /jobs payload, preserving order.
func FromResponses(rs []api.JobResponse) []Record {
	out := make([]Record, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromResponse(r))
	}
	return out
}

// Response converts the record back to its wire form.
func (r Record) Response() api.JobResponse {
	return api.JobResponse{
		ID:           r.ID,
		ResourceID:   r.ResourceID,
		Version:      r.Version,
		Type:         r.Type,
		Description:  r.Description,
		Status:       string(r.Status),
		Reason:       r.Reason,
		Parameters:   r.Parameters,
		CreationTime: r.CreationTime,
		UpdateTime:   r.UpdateTime,
		Percentage:   r.Percentage,
	}
}
