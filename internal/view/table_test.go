package view

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tileexport/internal/jobs"
	"tileexport/internal/reconcile"
)

func TestTable_ReplaceThenReconcile(t *testing.T) {
	table := NewTable()
	table.Apply(reconcile.Initial([]jobs.Record{
		{ID: "1", Status: jobs.StatusPending},
		{ID: "2", Status: jobs.StatusPending},
	}))

	row1, ok := table.Find("1")
	if !ok {
		t.Fatal("expected row 1 after initial load")
	}

	d := table.Reconcile([]jobs.Record{
		{ID: "1", Status: jobs.StatusCompleted},
		{ID: "3", Status: jobs.StatusPending},
	}, reconcile.DefaultFields)

	if len(d.Update) != 1 || len(d.Add) != 1 || len(d.Remove) != 1 {
		t.Fatalf("unexpected delta sizes: %+v", d)
	}

	rows := table.Rows()
	if len(rows) != 2 || rows[0].ID != "1" || rows[1].ID != "3" {
		t.Fatalf("unexpected rows after reconcile: %+v", table.Snapshot())
	}
	if rows[0] != row1 {
		t.Error("row 1 must keep its identity across updates")
	}
	if row1.Status != jobs.StatusCompleted {
		t.Errorf("expected held row to show COMPLETED, got %s", row1.Status)
	}
}

func TestTable_ApplyEmptyDeltaKeepsRows(t *testing.T) {
	table := NewTable()
	table.Apply(reconcile.Initial([]jobs.Record{{ID: "1"}}))
	table.Apply(reconcile.Delta{})

	if table.Len() != 1 {
		t.Errorf("expected 1 row, got %d", table.Len())
	}
}

func TestTable_SnapshotIsDetached(t *testing.T) {
	table := NewTable()
	table.Apply(reconcile.Initial([]jobs.Record{{ID: "1", Status: jobs.StatusPending}}))

	snap := table.Snapshot()
	snap[0].Status = jobs.StatusFailed

	row, _ := table.Find("1")
	if row.Status != jobs.StatusPending {
		t.Error("snapshot must not alias live rows")
	}
}

func TestRenderTable(t *testing.T) {
	now := time.Date(2020, 11, 1, 3, 30, 0, 0, time.UTC)
	rows := []jobs.Record{
		{ID: "111", ResourceID: "resource1", Version: "1.0", Type: "3DModel", Status: jobs.StatusCompleted, Percentage: 100, UpdateTime: now.Add(-5 * time.Minute)},
		{ID: "222", ResourceID: "resource2", Version: "1.0", Type: "3DModel", Status: jobs.StatusInProgress, Percentage: 50},
	}

	var buf bytes.Buffer
	if err := RenderTable(&buf, rows, RenderOptions{Now: now}); err != nil {
		t.Fatalf("RenderTable failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"111", "resource2", "Completed", "In-Progress", "[#####.....] 50%", "5 minutes ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("expected no ANSI escapes when Color is false")
	}
}

func TestRenderTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	_ = RenderTable(&buf, nil, RenderOptions{})
	if !strings.Contains(buf.String(), "(no jobs)") {
		t.Errorf("expected empty marker, got %q", buf.String())
	}
}

func TestFormatCoordinate(t *testing.T) {
	tests := []struct {
		v      float64
		digits int
		want   string
	}{
		{34.123456789, 5, "34.12346"},
		{35.5, 5, "35.5"},
		{32, 5, "32"},
		{-0.000001, 3, "0"},
		{31.55, 0, "32"},
	}
	for _, tt := range tests {
		if got := FormatCoordinate(tt.v, tt.digits); got != tt.want {
			t.Errorf("FormatCoordinate(%v, %d) = %q, want %q", tt.v, tt.digits, got, tt.want)
		}
	}
}

func TestProgressBar_Clamps(t *testing.T) {
	if got := ProgressBar(150, 4); got != "[####] 100%" {
		t.Errorf("unexpected bar %q", got)
	}
	if got := ProgressBar(-3, 4); got != "[....] 0%" {
		t.Errorf("unexpected bar %q", got)
	}
}
