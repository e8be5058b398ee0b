// Package reaper periodically fails executions that never reported a result.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// StaleFailer fails executions running longer than timeout and reports how
// many it changed.
type StaleFailer interface {
	FailStale(ctx context.Context, timeout time.Duration) (int, error)
}

// Reaper runs a StaleFailer on a cron schedule.
type Reaper struct {
	cron    *cron.Cron
	target  StaleFailer
	timeout time.Duration
	logger  *slog.Logger
	reaped  metric.Int64Counter
}

// New parses schedule (standard five-field or a descriptor such as
// "@every 1m") and prepares the job. Overlapping runs are skipped.
func New(schedule string, timeout time.Duration, target StaleFailer, logger *slog.Logger) (*Reaper, error) {
	reaped, err := otel.Meter("neco/reaper").Int64Counter("neco.reaper.reaped",
		metric.WithDescription("Executions failed for exceeding the execution timeout"))
	if err != nil {
		return nil, fmt.Errorf("failed to create reaper counter: %w", err)
	}

	r := &Reaper{
		target:  target,
		timeout: timeout,
		logger:  logger,
		reaped:  reaped,
	}
	r.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := r.cron.AddFunc(schedule, func() { r.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}
	return r, nil
}

// RunOnce performs a single sweep.
func (r *Reaper) RunOnce(ctx context.Context) int {
	n, err := r.target.FailStale(ctx, r.timeout)
	if n > 0 {
		r.reaped.Add(ctx, int64(n))
		r.logger.Warn("failed stale executions", "count", n, "timeout", r.timeout.String())
	}
	if err != nil {
		r.logger.Error("reaper sweep failed", "error", err)
	}
	return n
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// a sweep in progress to finish.
func (r *Reaper) Run(ctx context.Context) error {
	r.cron.Start()
	r.logger.Info("reaper started", "timeout", r.timeout.String())

	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.logger.Info("reaper stopped")
	return nil
}
