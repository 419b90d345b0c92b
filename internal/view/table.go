// Package view holds the job table displayed by the status view.
package view

import (
	"sync"

	"tileexport/internal/jobs"
	"tileexport/internal/reconcile"
)

// Table is an ordered job collection that applies reconcile deltas.
// Rows keep their identity across updates; additions go to the end.
type Table struct {
	mu   sync.RWMutex
	rows []*jobs.Record
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// Rows returns the current rows. The slice is a copy; the records are shared.
func (t *Table) Rows() []*jobs.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*jobs.Record, len(t.rows))
	copy(out, t.rows)
	return out
}

// Snapshot returns copies of the current rows, safe to read while the table
// is being updated.
func (t *Table) Snapshot() []jobs.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]jobs.Record, len(t.rows))
	for i, r := range t.rows {
		out[i] = *r
	}
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Find returns the row with the given ID.
func (t *Table) Find(id string) (*jobs.Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.rows {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Replace swaps the whole collection.
func (t *Table) Replace(rows []*jobs.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append([]*jobs.Record(nil), rows...)
}

// Apply applies a reconcile delta as a single transaction.
// Updated rows are expected to have been overwritten in place already.
func (t *Table) Apply(d reconcile.Delta) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyLocked(d)
}

// Reconcile diffs the current rows against fetched and applies the result
// while holding the table lock, so readers never observe a half-updated row.
func (t *Table) Reconcile(fetched []jobs.Record, tracked reconcile.Fields) reconcile.Delta {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := reconcile.Reconcile(t.rows, fetched, tracked)
	t.applyLocked(d)
	return d
}

func (t *Table) applyLocked(d reconcile.Delta) {
	if d.Replace != nil {
		t.rows = append([]*jobs.Record(nil), d.Replace...)
		return
	}

	if len(d.Remove) > 0 {
		drop := make(map[*jobs.Record]struct{}, len(d.Remove))
		for _, r := range d.Remove {
			drop[r] = struct{}{}
		}
		kept := t.rows[:0]
		for _, r := range t.rows {
			if _, ok := drop[r]; !ok {
				kept = append(kept, r)
			}
		}
		for i := len(kept); i < len(t.rows); i++ {
			t.rows[i] = nil
		}
		t.rows = kept
	}

	t.rows = append(t.rows, d.Add...)
}
