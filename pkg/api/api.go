// Package api contains shared JSON request/response structs.
// This package is shared between exportctl and the job service.
package api

import (
	"encoding/json"
	"regexp"
	"time"
)

// PathPattern is what model paths and identifiers must match.
var PathPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_/()\\.]+$`)

// Job status values as reported by the job service.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In-Progress"
	StatusCompleted  = "Completed"
	StatusFailed     = "Failed"
)

// JobResponse is one entry of the GET /jobs response.
type JobResponse struct {
	ID           string          `json:"id" yaml:"id"`
	ResourceID   string          `json:"resourceId" yaml:"resourceId"`
	Version      string          `json:"version" yaml:"version"`
	Type         string          `json:"type" yaml:"type"`
	Description  string          `json:"description" yaml:"description"`
	Status       string          `json:"status" yaml:"status"`
	Reason       string          `json:"reason" yaml:"reason"`
	Parameters   json.RawMessage `json:"parameters,omitempty" yaml:"-"`
	CreationTime time.Time       `json:"creationTime" yaml:"creationTime"`
	UpdateTime   time.Time       `json:"updateTime" yaml:"updateTime"`
	Percentage   float64         `json:"percentage" yaml:"percentage"`
}

// ModelMetadata is the metadata bag sent alongside an export request.
type ModelMetadata struct {
	Identifier             string          `json:"identifier" yaml:"identifier"`
	Typename               string          `json:"typename,omitempty" yaml:"typename,omitempty"`
	Schema                 string          `json:"schema,omitempty" yaml:"schema,omitempty"`
	MDSource               string          `json:"mdSource,omitempty" yaml:"mdSource,omitempty"`
	XML                    string          `json:"xml,omitempty" yaml:"xml,omitempty"`
	Anytext                string          `json:"anytext,omitempty" yaml:"anytext,omitempty"`
	InsertDate             string          `json:"insertDate,omitempty" yaml:"insertDate,omitempty"`
	CreationDate           string          `json:"creationDate,omitempty" yaml:"creationDate,omitempty"`
	ValidationDate         string          `json:"validationDate,omitempty" yaml:"validationDate,omitempty"`
	WKTGeometry            string          `json:"wktGeometry,omitempty" yaml:"wktGeometry,omitempty"`
	Geometry               json.RawMessage `json:"geometry,omitempty" yaml:"-"`
	Title                  string          `json:"title,omitempty" yaml:"title,omitempty"`
	ProducerName           string          `json:"producerName,omitempty" yaml:"producerName,omitempty"`
	Description            string          `json:"description,omitempty" yaml:"description,omitempty"`
	Type                   string          `json:"type,omitempty" yaml:"type,omitempty"`
	Classification         string          `json:"classification,omitempty" yaml:"classification,omitempty"`
	SRS                    string          `json:"srs,omitempty" yaml:"srs,omitempty"`
	ProjectName            string          `json:"projectName,omitempty" yaml:"projectName,omitempty"`
	Version                string          `json:"version,omitempty" yaml:"version,omitempty"`
	Centroid               string          `json:"centroid,omitempty" yaml:"centroid,omitempty"`
	Footprint              string          `json:"footprint,omitempty" yaml:"footprint,omitempty"`
	TimeBegin              string          `json:"timeBegin,omitempty" yaml:"timeBegin,omitempty"`
	TimeEnd                string          `json:"timeEnd,omitempty" yaml:"timeEnd,omitempty"`
	SensorType             string          `json:"sensorType,omitempty" yaml:"sensorType,omitempty"`
	Region                 string          `json:"region,omitempty" yaml:"region,omitempty"`
	NominalResolution      string          `json:"nominalResolution,omitempty" yaml:"nominalResolution,omitempty"`
	AccuracyLE90           string          `json:"accuracyLE90,omitempty" yaml:"accuracyLE90,omitempty"`
	HorizontalAccuracyCE90 string          `json:"horizontalAccuracyCE90,omitempty" yaml:"horizontalAccuracyCE90,omitempty"`
	RelativeAccuracyLE90   string          `json:"relativeAccuracyLE90,omitempty" yaml:"relativeAccuracyLE90,omitempty"`
	EstimatedPrecision     string          `json:"estimatedPrecision,omitempty" yaml:"estimatedPrecision,omitempty"`
	MeasuredPrecision      string          `json:"measuredPrecision,omitempty" yaml:"measuredPrecision,omitempty"`
}

// ExportModelRequest is the request body for POST /models.
type ExportModelRequest struct {
	ModelPath       string        `json:"modelPath"`
	TilesetFilename string        `json:"tilesetFilename"`
	Metadata        ModelMetadata `json:"metadata"`
}

// IngestModelRequest is the request body for POST /ingestions.
type IngestModelRequest struct {
	ModelPath       string `json:"modelPath"`
	TilesetFilename string `json:"tilesetFilename"`
	Identifier      string `json:"identifier"`
}

// SubmitResponse is returned after a submission was accepted.
type SubmitResponse struct {
	ID string `json:"id"`
}

// Error names carried in ErrorResponse.Name.
const (
	ErrNameGeneral       = "GENERAL_ERROR_OCCURED"
	ErrNameSaveExport    = "ERR_SAVE_EXPORT_STATUS"
	ErrNameSaveLoad      = "ERR_SAVE_LOAD_STATUS"
	ErrNameDuplicatePath = "ERR_DUPLICATE_PATH"
	ErrNameBBoxTooSmall  = "ERR_BBOX_AREA_TOO_SMALL"
	ErrNameBBoxTooLarge  = "ERR_BBOX_AREA_TOO_LARGE"
)

// ErrorResponse is the standard error response format.
// Name carries a machine readable error kind when the service knows one.
type ErrorResponse struct {
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}
