package view

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"tileexport/internal/jobs"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// RenderOptions controls table output.
type RenderOptions struct {
	// Color enables ANSI escapes.
	Color bool
	// Now is used for relative times; zero means time.Now().
	Now time.Time
}

// StatusIcon returns the glyph shown next to a status.
func StatusIcon(status jobs.Status, color bool) string {
	var icon, c string
	switch status {
	case jobs.StatusCompleted:
		icon, c = "✓", colorGreen
	case jobs.StatusFailed:
		icon, c = "✗", colorRed
	case jobs.StatusInProgress:
		icon, c = "⏳", colorYellow
	case jobs.StatusPending:
		icon, c = "◯", colorCyan
	default:
		return "•"
	}
	if !color {
		return icon
	}
	return c + icon + colorReset
}

// RenderTable writes rows as an aligned table.
func RenderTable(w io.Writer, rows []jobs.Record, opts RenderOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "ID\tRESOURCE\tVERSION\tTYPE\tSTATUS\tPROGRESS\tUPDATED\tREASON"
	if opts.Color {
		header = colorBold + header + colorReset
	}
	fmt.Fprintln(tw, header)

	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\t%s\t%s\t%s\n",
			r.ID,
			dash(r.ResourceID),
			dash(r.Version),
			dash(r.Type),
			StatusIcon(r.Status, opts.Color), dash(string(r.Status)),
			ProgressBar(r.Percentage, 10),
			relative(r.UpdateTime, now),
			dash(r.Reason),
		)
	}

	if len(rows) == 0 {
		fmt.Fprintln(tw, "(no jobs)")
	}
	return tw.Flush()
}

// ProgressBar renders a fixed-width bar followed by the percentage.
func ProgressBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "] " +
		strconv.FormatFloat(pct, 'f', 0, 64) + "%"
}

// FormatCoordinate prints v with at most maxDigits fraction digits and no
// trailing zeros.
func FormatCoordinate(v float64, maxDigits int) string {
	if maxDigits < 0 {
		maxDigits = 0
	}
	s := strconv.FormatFloat(v, 'f', maxDigits, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

func relative(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
