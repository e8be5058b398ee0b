// Package dispatch runs background work detached from the request that
// scheduled it, with bounded concurrency and a graceful drain on shutdown.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"neco/internal/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrStopped   = errors.New("dispatch: executor stopped")
	ErrQueueFull = errors.New("dispatch: queue full")
)

// Task is a unit of background work. The context is cancelled when the
// task exceeds its timeout.
type Task = func(ctx context.Context) error

// Config holds executor limits.
type Config struct {
	Concurrency int
	QueueSize   int
	TaskTimeout time.Duration
}

type task struct {
	name      string
	fn        Task
	requestID string
	link      trace.SpanContext
	queuedAt  time.Time
}

// Executor is a fixed pool of workers fed by a bounded queue.
type Executor struct {
	config Config
	logger *slog.Logger
	tasks  chan task

	mu      sync.RWMutex
	stopped bool

	wg       sync.WaitGroup
	done     chan struct{}
	inflight atomic.Int64

	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// New creates an executor. Workers start when Run is called; tasks submitted
// before that wait in the queue.
func New(config Config, log *slog.Logger) (*Executor, error) {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.Concurrency * 64
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	e := &Executor{
		config: config,
		logger: log,
		tasks:  make(chan task, config.QueueSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer("neco/dispatch"),
	}

	meter := otel.Meter("neco/dispatch")
	var err error
	e.outcomes, err = meter.Int64Counter("neco.dispatch.total",
		metric.WithDescription("Background tasks by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch counter: %w", err)
	}
	_, err = meter.Int64ObservableGauge("neco.dispatch.inflight",
		metric.WithDescription("Background tasks currently running"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(e.inflight.Load())
			return nil
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to create inflight gauge: %w", err)
	}

	return e, nil
}

// Submit queues fn without blocking. The task does not inherit ctx
// cancellation; only its request id and trace are carried over.
func (e *Executor) Submit(ctx context.Context, name string, fn Task) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.stopped {
		return ErrStopped
	}

	t := task{
		name:      name,
		fn:        fn,
		requestID: logger.RequestIDFromContext(ctx),
		link:      trace.SpanContextFromContext(ctx),
		queuedAt:  time.Now(),
	}

	select {
	case e.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled. It then stops
// accepting tasks, drains everything already queued and waits for running
// tasks to finish.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("dispatcher starting",
		"concurrency", e.config.Concurrency,
		"queue_size", e.config.QueueSize,
	)

	for i := 0; i < e.config.Concurrency; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	<-ctx.Done()
	e.logger.Info("dispatcher draining", "pending", len(e.tasks))

	e.mu.Lock()
	e.stopped = true
	close(e.tasks)
	e.mu.Unlock()

	e.wg.Wait()
	close(e.done)
	e.logger.Info("dispatcher stopped")
	return nil
}

// Done returns a channel that is closed when the executor has fully stopped.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

// InFlight returns the number of running tasks.
func (e *Executor) InFlight() int64 {
	return e.inflight.Load()
}

// Pending returns the number of queued tasks.
func (e *Executor) Pending() int {
	return len(e.tasks)
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for t := range e.tasks {
		e.execute(t)
	}
}

func (e *Executor) execute(t task) {
	e.inflight.Add(1)
	defer e.inflight.Add(-1)

	ctx := context.Background()
	if t.requestID != "" {
		ctx = logger.WithRequestID(ctx, t.requestID)
	}

	opts := []trace.SpanStartOption{
		trace.WithAttributes(attribute.String("task.name", t.name)),
	}
	if t.link.IsValid() {
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: t.link}))
	}
	ctx, span := e.tracer.Start(ctx, "dispatch.task", opts...)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.config.TaskTimeout)
	defer cancel()

	log := logger.FromContext(ctx, e.logger).With("task", t.name)
	start := time.Now()

	outcome := "success"
	err := e.run(ctx, t.fn)
	switch {
	case errors.Is(err, errPanicked):
		outcome = "panic"
	case err != nil:
		outcome = "failure"
	}

	e.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", t.name),
		attribute.String("outcome", outcome),
	))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		log.Error("task failed", "error", err, "duration", time.Since(start), "waited", start.Sub(t.queuedAt))
		return
	}
	log.Info("task completed", "duration", time.Since(start), "waited", start.Sub(t.queuedAt))
}

var errPanicked = errors.New("task panicked")

func (e *Executor) run(ctx context.Context, fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", errPanicked, r, debug.Stack())
		}
	}()
	return fn(ctx)
}
