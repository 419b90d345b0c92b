// Package poller drives the fetch-and-reconcile cycle of the job status view.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"tileexport/internal/jobs"
	"tileexport/internal/notify"
	"tileexport/internal/reconcile"
	"tileexport/internal/registry"
	"tileexport/internal/reqstate"
)

// ErrAlreadyOpen is returned by Open when the driver is already running.
var ErrAlreadyOpen = errors.New("poller: already open")

// ListFunc fetches the current job list.
type ListFunc func(ctx context.Context) ([]jobs.Record, error)

// Sink owns the displayed collection.
type Sink interface {
	Apply(d reconcile.Delta)
	Reconcile(fetched []jobs.Record, tracked reconcile.Fields) reconcile.Delta
}

// Config holds configuration for the driver.
type Config struct {
	Interval time.Duration    // Cycle interval (default: 2s)
	Tracked  reconcile.Fields // Fields that mark a row as changed (default: reconcile.DefaultFields)
	Logger   *slog.Logger     // Optional
}

// Event describes the outcome of one fetch.
type Event struct {
	Cycle   int
	Seq     uint64
	Initial bool
	Delta   reconcile.Delta
	Err     error
	// Discarded is set when the result arrived after Close or after a newer
	// response had already been applied.
	Discarded bool
}

// Driver periodically fetches the job list while open and reconciles each
// response into the sink.
//
// Every fetch gets a sequence number. A response is applied only if no
// response with a higher sequence number has been applied before it, and
// only while the driver is still open in the same session.
type Driver struct {
	list   ListFunc
	sink   Sink
	state  *reqstate.Tracker
	config Config
	logger *slog.Logger
	m      metrics

	mu       sync.Mutex
	open     bool
	session  uint64
	cycle    int
	seq      uint64
	applied  uint64
	loaded   bool
	cancel   context.CancelFunc
	loopDone chan struct{}

	// notifyMu keeps apply+notify of one response atomic relative to others.
	notifyMu  sync.Mutex
	listeners notify.List[Event]
}

// New creates a closed driver. state receives Begin/Succeed/Fail for every
// applied fetch.
func New(list ListFunc, sink Sink, state *reqstate.Tracker, config Config) *Driver {
	if config.Interval <= 0 {
		config.Interval = 2 * time.Second
	}
	if config.Tracked == 0 {
		config.Tracked = reconcile.DefaultFields
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		list:      list,
		sink:      sink,
		state:     state,
		config:    config,
		logger:    logger,
		m:         newMetrics(logger),
	}
}

// Open fetches immediately and then on every interval until Close is called
// or ctx is cancelled. In-flight fetches use ctx, so they are not aborted by
// Close; their results are dropped instead.
func (d *Driver) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.open {
		d.mu.Unlock()
		return ErrAlreadyOpen
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.open = true
	d.session++
	d.cycle = 0
	d.loaded = false
	d.applied = d.seq
	d.cancel = cancel
	d.loopDone = make(chan struct{})
	session := d.session
	done := d.loopDone
	d.mu.Unlock()

	d.logger.Debug("status polling opened", "interval", d.config.Interval)

	d.launch(ctx, session)
	go d.loop(loopCtx, ctx, session, done)
	return nil
}

// Close stops the ticker and waits for the polling loop to exit.
// It is safe to call on a closed driver.
func (d *Driver) Close() {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return
	}
	d.open = false
	cancel := d.cancel
	done := d.loopDone
	d.mu.Unlock()

	cancel()
	<-done
	d.logger.Debug("status polling closed")
}

// IsOpen reports whether the driver is polling.
func (d *Driver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Cycle returns the number of ticks since the last Open.
func (d *Driver) Cycle() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycle
}

// Subscribe registers fn for every fetch outcome, called in subscription
// order. The returned func removes it.
func (d *Driver) Subscribe(fn func(Event)) func() {
	return d.listeners.Add(fn)
}

func (d *Driver) loop(loopCtx, fetchCtx context.Context, session uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			d.mu.Lock()
			if d.session == session {
				d.open = false
			}
			d.mu.Unlock()
			return
		case <-ticker.C:
			d.mu.Lock()
			d.cycle++
			d.mu.Unlock()
			d.launch(fetchCtx, session)
		}
	}
}

func (d *Driver) launch(ctx context.Context, session uint64) {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	cycle := d.cycle
	d.mu.Unlock()

	d.m.cycles.Add(ctx, 1)
	if d.state != nil {
		d.state.Begin()
	}

	go func() {
		records, err := d.list(ctx)
		d.complete(ctx, session, cycle, seq, records, err)
	}()
}

func (d *Driver) complete(ctx context.Context, session uint64, cycle int, seq uint64, records []jobs.Record, err error) {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	ev := Event{Cycle: cycle, Seq: seq, Err: err}

	d.mu.Lock()
	switch {
	case !d.open || d.session != session:
		ev.Discarded = true
		d.m.discarded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "closed")))
	case seq <= d.applied:
		ev.Discarded = true
		d.m.discarded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "stale")))
	default:
		d.applied = seq
		if err == nil {
			if !d.loaded {
				ev.Initial = true
				ev.Delta = reconcile.Initial(records)
				d.sink.Apply(ev.Delta)
				d.loaded = true
			} else {
				ev.Delta = d.sink.Reconcile(records, d.config.Tracked)
			}
		}
	}
	d.mu.Unlock()

	switch {
	case ev.Discarded:
		d.logger.Debug("discarding job list response", "seq", seq, "cycle", cycle)
	case err != nil:
		d.m.failures.Add(ctx, 1)
		d.logger.Warn("failed to fetch job list", "seq", seq, "error", err)
		if d.state != nil {
			d.state.Fail(registry.InternalError{Kind: registry.KindGeneral, Request: failedRequest(err)})
		}
	default:
		d.m.recordDelta(ctx, ev.Delta)
		if d.state != nil {
			d.state.Succeed()
		}
	}

	d.listeners.Notify(ev)
}

// failedRequest extracts request context from fetch errors that carry it.
func failedRequest(err error) any {
	var re interface{ FailedRequest() any }
	if errors.As(err, &re) {
		return re.FailedRequest()
	}
	return nil
}

type metrics struct {
	cycles    metric.Int64Counter
	discarded metric.Int64Counter
	failures  metric.Int64Counter
	rows      metric.Int64Counter
}

func newMetrics(logger *slog.Logger) metrics {
	meter := otel.Meter("exportctl-poller")

	var m metrics
	var err error
	if m.cycles, err = meter.Int64Counter("exportctl.poll.fetches",
		metric.WithDescription("Job list fetches issued by the status view")); err != nil {
		logger.Warn("Failed to register metric", "name", "exportctl.poll.fetches", "error", err)
	}
	if m.discarded, err = meter.Int64Counter("exportctl.poll.discarded",
		metric.WithDescription("Job list responses dropped as stale or after close")); err != nil {
		logger.Warn("Failed to register metric", "name", "exportctl.poll.discarded", "error", err)
	}
	if m.failures, err = meter.Int64Counter("exportctl.poll.failures",
		metric.WithDescription("Job list fetches that failed")); err != nil {
		logger.Warn("Failed to register metric", "name", "exportctl.poll.failures", "error", err)
	}
	if m.rows, err = meter.Int64Counter("exportctl.reconcile.rows",
		metric.WithDescription("Rows touched by reconciliation, by operation")); err != nil {
		logger.Warn("Failed to register metric", "name", "exportctl.reconcile.rows", "error", err)
	}
	return m
}

func (m metrics) recordDelta(ctx context.Context, d reconcile.Delta) {
	add := func(op string, n int) {
		if n > 0 {
			m.rows.Add(ctx, int64(n), metric.WithAttributes(attribute.String("op", op)))
		}
	}
	add("replace", len(d.Replace))
	add("add", len(d.Add))
	add("update", len(d.Update))
	add("remove", len(d.Remove))
}
