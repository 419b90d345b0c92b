// Package handlers contains HTTP handlers for the job service API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"tileexport/internal/logger"
	"tileexport/internal/store"
	"tileexport/pkg/api"
)

// StoreFactory combines the interfaces needed for the service to function.
type StoreFactory interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	Ping(ctx context.Context) error
	store.TaskStore
}

// Limits bounds the bbox area (square degrees) of submitted geometries.
// Zero disables a bound.
type Limits struct {
	BBoxMinArea float64
	BBoxMaxArea float64
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store  StoreFactory
	limits Limits
	logger *slog.Logger
}

// New creates a new Handlers instance.
func New(s StoreFactory, limits Limits, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{store: s, limits: limits, logger: log}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.namedError(w, "", message, code)
}

// namedError returns an error the client maps to a specific error kind.
func (h *Handlers) namedError(w http.ResponseWriter, name, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Name:    name,
		Message: message,
	})
}

func (h *Handlers) log(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, h.logger)
}
