// Package registry collects internal errors surfaced to the user interface.
package registry

import (
	"sync"

	"tileexport/pkg/api"
)

// Kind identifies a class of internal error.
// Values are the names the backend reports in error bodies.
type Kind string

const (
	KindGeneral       Kind = api.ErrNameGeneral
	KindSavingExport  Kind = api.ErrNameSaveExport
	KindSavingLoad    Kind = api.ErrNameSaveLoad
	KindDuplicatePath Kind = api.ErrNameDuplicatePath
	KindBBoxTooSmall  Kind = api.ErrNameBBoxTooSmall
	KindBBoxTooLarge  Kind = api.ErrNameBBoxTooLarge
)

var knownKinds = map[Kind]struct{}{
	KindGeneral:       {},
	KindSavingExport:  {},
	KindSavingLoad:    {},
	KindDuplicatePath: {},
	KindBBoxTooSmall:  {},
	KindBBoxTooLarge:  {},
}

// ParseKind maps a backend error name to a known Kind.
func ParseKind(name string) (Kind, bool) {
	k := Kind(name)
	if _, ok := knownKinds[k]; ok {
		return k, true
	}
	return "", false
}

// InternalError is one registered failure.
// Request is an opaque description of the request that failed, if any.
type InternalError struct {
	Kind    Kind
	Request any
}

// Registry is an append/query/remove collection of InternalErrors.
// Entries of the same kind are not deduplicated.
type Registry struct {
	mu     sync.RWMutex
	errors []InternalError
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add appends err.
func (r *Registry) Add(err InternalError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

// Has reports whether an entry of the given kind exists.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// HasAny reports whether the registry is non-empty.
func (r *Registry) HasAny() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.errors) > 0
}

// Clean removes every entry of the given kind and reports whether any existed.
func (r *Registry) Clean(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.errors[:0]
	found := false
	for _, e := range r.errors {
		if e.Kind == kind {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	// Drop references held past the new length.
	for i := len(kept); i < len(r.errors); i++ {
		r.errors[i] = InternalError{}
	}
	r.errors = kept
	return found
}

// CleanAll empties the registry.
func (r *Registry) CleanAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = nil
}

// Errors returns a snapshot of the registered errors in insertion order.
func (r *Registry) Errors() []InternalError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]InternalError, len(r.errors))
	copy(out, r.errors)
	return out
}
