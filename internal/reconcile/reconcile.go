// Package reconcile computes add/update/remove deltas between the job
// collection a view holds and a freshly fetched job list.
package reconcile

import (
	"bytes"
	"fmt"
	"strings"

	"tileexport/internal/jobs"
)

// Fields selects which record fields mark a record as changed.
type Fields uint16

const (
	FieldStatus Fields = 1 << iota
	FieldUpdateTime
	FieldPercentage
	FieldReason
	FieldDescription
	FieldParameters
	FieldResourceID
	FieldVersion
	FieldType
	FieldCreationTime
)

// DefaultFields is the tracked set used when none is configured.
const DefaultFields = FieldStatus | FieldUpdateTime | FieldPercentage

// AllFields tracks every mutable field.
const AllFields = FieldStatus | FieldUpdateTime | FieldPercentage | FieldReason |
	FieldDescription | FieldParameters | FieldResourceID | FieldVersion |
	FieldType | FieldCreationTime

var fieldNames = map[string]Fields{
	"status":       FieldStatus,
	"updatetime":   FieldUpdateTime,
	"percentage":   FieldPercentage,
	"reason":       FieldReason,
	"description":  FieldDescription,
	"parameters":   FieldParameters,
	"resourceid":   FieldResourceID,
	"version":      FieldVersion,
	"type":         FieldType,
	"creationtime": FieldCreationTime,
	"all":          AllFields,
}

// ParseFields converts configured field names (case-insensitive) into a set.
// An empty list yields DefaultFields.
func ParseFields(names []string) (Fields, error) {
	if len(names) == 0 {
		return DefaultFields, nil
	}
	var f Fields
	for _, n := range names {
		v, ok := fieldNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown tracked field %q", n)
		}
		f |= v
	}
	return f, nil
}

// Has reports whether every field in other is tracked.
func (f Fields) Has(other Fields) bool {
	return f&other == other
}

// Delta is the outcome of one reconciliation.
// Replace is set only for a first load, where it holds the full collection
// and the other lists are empty.
type Delta struct {
	Add     []*jobs.Record
	Update  []*jobs.Record
	Remove  []*jobs.Record
	Replace []*jobs.Record
}

// Empty reports whether applying the delta would change nothing.
func (d Delta) Empty() bool {
	return len(d.Add) == 0 && len(d.Update) == 0 && len(d.Remove) == 0 && d.Replace == nil
}

// Initial builds the first-load delta: fetched replaces whatever the view had.
func Initial(fetched []jobs.Record) Delta {
	rows := make([]*jobs.Record, 0, len(fetched))
	seen := make(map[string]struct{}, len(fetched))
	for i := range fetched {
		if _, dup := seen[fetched[i].ID]; dup {
			continue
		}
		seen[fetched[i].ID] = struct{}{}
		rec := fetched[i]
		rows = append(rows, &rec)
	}
	return Delta{Replace: rows}
}

// Reconcile diffs previous against fetched by record ID.
//
// A previous record whose tracked fields differ from its fetched counterpart
// is overwritten in place with every fetched field and listed in Update, so
// pointers held by the caller keep referring to the live row. Previous records
// missing from fetched are listed in Remove; fetched records with no previous
// counterpart are listed in Add as new allocations. If fetched repeats an ID,
// the first occurrence wins.
func Reconcile(previous []*jobs.Record, fetched []jobs.Record, tracked Fields) Delta {
	var d Delta

	byID := make(map[string]int, len(fetched))
	for i := range fetched {
		if _, dup := byID[fetched[i].ID]; !dup {
			byID[fetched[i].ID] = i
		}
	}

	held := make(map[string]struct{}, len(previous))
	for _, p := range previous {
		held[p.ID] = struct{}{}

		i, ok := byID[p.ID]
		if !ok {
			d.Remove = append(d.Remove, p)
			continue
		}
		if Changed(p, &fetched[i], tracked) {
			*p = fetched[i]
			d.Update = append(d.Update, p)
		}
	}

	for i := range fetched {
		id := fetched[i].ID
		if _, ok := held[id]; ok {
			continue
		}
		if byID[id] != i {
			continue
		}
		rec := fetched[i]
		d.Add = append(d.Add, &rec)
	}

	return d
}

// Changed reports whether any tracked field differs between a and b.
func Changed(a, b *jobs.Record, tracked Fields) bool {
	switch {
	case tracked.Has(FieldStatus) && a.Status != b.Status:
		return true
	case tracked.Has(FieldUpdateTime) && !a.UpdateTime.Equal(b.UpdateTime):
		return true
	case tracked.Has(FieldPercentage) && a.Percentage != b.Percentage:
		return true
	case tracked.Has(FieldReason) && a.Reason != b.Reason:
		return true
	case tracked.Has(FieldDescription) && a.Description != b.Description:
		return true
	case tracked.Has(FieldParameters) && !bytes.Equal(a.Parameters, b.Parameters):
		return true
	case tracked.Has(FieldResourceID) && a.ResourceID != b.ResourceID:
		return true
	case tracked.Has(FieldVersion) && a.Version != b.Version:
		return true
	case tracked.Has(FieldType) && a.Type != b.Type:
		return true
	case tracked.Has(FieldCreationTime) && !a.CreationTime.Equal(b.CreationTime):
		return true
	}
	return false
}
