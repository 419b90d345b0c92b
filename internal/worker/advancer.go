// Package worker moves submitted tasks through their lifecycle in the
// background of the job service.
package worker

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TaskAdvancer is the part of the task store the advancer needs.
type TaskAdvancer interface {
	AdvanceTasks(ctx context.Context, step float64, limit int) (int64, error)
}

// Config holds configuration for the advancer.
type Config struct {
	Interval   time.Duration // Interval between advances (default: 2s)
	Step       float64       // Percentage added per advance (default: 25)
	Batch      int           // Maximum tasks touched per advance (default: 50)
	MaxBackoff time.Duration // Maximum wait when nothing is active (default: 30s)
}

// Advancer periodically moves pending and in-progress tasks forward until
// they complete.
type Advancer struct {
	store  TaskAdvancer
	config Config
	logger *slog.Logger
	done   chan struct{}
}

// New creates a new advancer.
func New(s TaskAdvancer, config Config, logger *slog.Logger) *Advancer {
	if config.Interval <= 0 {
		config.Interval = 2 * time.Second
	}

	if config.Step <= 0 {
		config.Step = 25
	}

	if config.Batch <= 0 {
		config.Batch = 50
	}

	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.MaxBackoff < config.Interval {
		config.MaxBackoff = config.Interval
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Advancer{
		store:  s,
		config: config,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run advances tasks until the context is cancelled. When a pass touches
// no task the wait doubles up to MaxBackoff, and resets once work shows up.
func (a *Advancer) Run(ctx context.Context) error {
	a.logger.Info("advancer starting",
		"interval", a.config.Interval, "step", a.config.Step, "batch", a.config.Batch)
	defer close(a.done)

	wait := a.config.Interval
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("advancer stopped")
			return ctx.Err()
		case <-time.After(wait):
		}

		n, err := a.advance(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			a.logger.Error("failed to advance tasks", "error", err)
			wait = a.config.Interval
		case n == 0:
			wait = min(wait*2, a.config.MaxBackoff)
		default:
			a.logger.Debug("advanced tasks", "count", n)
			wait = a.config.Interval
		}
	}
}

func (a *Advancer) advance(ctx context.Context) (int64, error) {
	tracer := otel.Tracer("jobservice-advancer")
	ctx, span := tracer.Start(ctx, "advance_tasks")
	defer span.End()

	n, err := a.store.AdvanceTasks(ctx, a.config.Step, a.config.Batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "advance failed")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("tasks.advanced", n))
	return n, nil
}

// Done returns a channel that is closed when the advancer has fully stopped.
func (a *Advancer) Done() <-chan struct{} {
	return a.done
}
