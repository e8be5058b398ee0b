package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"neco/internal/logger"
	"neco/internal/store"
	"neco/internal/workflow"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// DispatchTaskName names the background task that enqueues a started execution.
const DispatchTaskName = "execution.dispatch"

// Execution log events.
const (
	EventStarted        = "started"
	EventDispatched     = "dispatched"
	EventDispatchFailed = "dispatch_failed"
	EventCompleted      = "completed"
	EventFailed         = "failed"
	EventTimedOut       = "timed_out"
)

// ExecutionService drives executions through created -> running ->
// completed|failed. Every status change is a compare-and-set in the store.
type ExecutionService struct {
	executions store.ExecutionStore
	systems    store.SystemStore
	workspaces store.WorkspaceStore
	dispatcher Dispatcher
	jobs       JobQueue
	logger     *slog.Logger
	now        func() time.Time
	started    metric.Int64Counter
}

func NewExecutionService(
	executions store.ExecutionStore,
	systems store.SystemStore,
	workspaces store.WorkspaceStore,
	dispatcher Dispatcher,
	jobs JobQueue,
	logger *slog.Logger,
) *ExecutionService {
	started, _ := otel.Meter("neco/service").Int64Counter("neco.executions.started",
		metric.WithDescription("Executions moved to running"))

	return &ExecutionService{
		executions: executions,
		systems:    systems,
		workspaces: workspaces,
		dispatcher: dispatcher,
		jobs:       jobs,
		logger:     logger,
		now:        time.Now,
		started:    started,
	}
}

// CreateExecution records a new run of systemID with the given workflow
// snapshot. initialStatus may be empty or "created".
func (s *ExecutionService) CreateExecution(ctx context.Context, callerID, systemID uuid.UUID, systemJSON json.RawMessage, initialStatus string) (*store.Execution, error) {
	if initialStatus != "" && initialStatus != string(store.ExecutionStatusCreated) {
		return nil, BadRequest("initial status must be %q", store.ExecutionStatusCreated)
	}
	if len(systemJSON) > 0 && !json.Valid(systemJSON) {
		return nil, BadRequest("system_json is not valid JSON")
	}

	if _, err := s.visibleSystem(ctx, systemID, callerID); err != nil {
		return nil, err
	}

	exec := &store.Execution{
		ID:         uuid.New(),
		SystemID:   systemID,
		SystemJSON: systemJSON,
		Logs:       []store.LogEntry{},
		Status:     store.ExecutionStatusCreated,
	}
	if err := s.executions.CreateExecution(ctx, exec); err != nil {
		return nil, storeFailure(err)
	}
	return exec, nil
}

func (s *ExecutionService) GetExecution(ctx context.Context, callerID, id uuid.UUID) (*store.Execution, error) {
	exec, err := s.executions.GetExecutionByID(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if exec == nil {
		return nil, NotFound("execution not found")
	}
	if _, err := s.visibleSystem(ctx, exec.SystemID, callerID); err != nil {
		if KindOf(err) == KindNotFound {
			return nil, NotFound("execution not found")
		}
		return nil, err
	}
	return exec, nil
}

func (s *ExecutionService) ListExecutions(ctx context.Context, callerID, systemID uuid.UUID) ([]store.Execution, int, error) {
	if _, err := s.visibleSystem(ctx, systemID, callerID); err != nil {
		return nil, 0, err
	}

	execs, err := s.executions.ListExecutionsBySystem(ctx, systemID)
	if err != nil {
		return nil, 0, storeFailure(err)
	}
	return execs, len(execs), nil
}

// StartExecution moves a created execution to running and schedules its
// dispatch. It returns once the task is queued; the dispatch outcome is
// written to the execution log.
func (s *ExecutionService) StartExecution(ctx context.Context, callerID, id uuid.UUID) error {
	exec, err := s.GetExecution(ctx, callerID, id)
	if err != nil {
		return err
	}

	changed, err := s.executions.TransitionExecution(ctx, id,
		store.ExecutionStatusCreated, store.ExecutionStatusRunning,
		&store.LogEntry{Event: EventStarted, At: s.now().UTC()},
	)
	if err != nil {
		return storeFailure(err)
	}
	if !changed {
		return s.transitionConflict(ctx, id)
	}
	s.started.Add(ctx, 1)

	snapshot := exec.SystemJSON
	systemID := exec.SystemID
	err = s.dispatcher.Submit(ctx, DispatchTaskName, func(ctx context.Context) error {
		return s.dispatch(ctx, id, systemID, snapshot)
	})
	if err != nil {
		s.recordDispatchFailure(ctx, id, fmt.Errorf("dispatcher rejected task: %w", err))
		return &Error{Kind: KindUpstream, Message: "dispatcher unavailable", Err: err}
	}
	return nil
}

// CompleteExecution records the terminal state reported by a queue consumer.
func (s *ExecutionService) CompleteExecution(ctx context.Context, id uuid.UUID, succeeded bool, message string) (*store.Execution, error) {
	to, event := store.ExecutionStatusFailed, EventFailed
	if succeeded {
		to, event = store.ExecutionStatusCompleted, EventCompleted
	}

	changed, err := s.executions.TransitionExecution(ctx, id, store.ExecutionStatusRunning, to,
		&store.LogEntry{Event: event, Message: message, At: s.now().UTC()},
	)
	if err != nil {
		return nil, storeFailure(err)
	}
	if !changed {
		return nil, s.transitionConflict(ctx, id)
	}

	exec, err := s.executions.GetExecutionByID(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if exec == nil {
		return nil, NotFound("execution not found")
	}
	return exec, nil
}

// FailStale marks executions that have been running longer than timeout as
// failed and returns how many were changed.
func (s *ExecutionService) FailStale(ctx context.Context, timeout time.Duration) (int, error) {
	ids, err := s.executions.ListStaleExecutions(ctx, s.now().Add(-timeout))
	if err != nil {
		return 0, storeFailure(err)
	}

	reaped := 0
	for _, id := range ids {
		changed, err := s.executions.TransitionExecution(ctx, id,
			store.ExecutionStatusRunning, store.ExecutionStatusFailed,
			&store.LogEntry{Event: EventTimedOut, Message: "no result within " + timeout.String(), At: s.now().UTC()},
		)
		if err != nil {
			return reaped, storeFailure(err)
		}
		if changed {
			reaped++
		}
	}
	return reaped, nil
}

// dispatch runs on the executor, detached from the request.
func (s *ExecutionService) dispatch(ctx context.Context, id, systemID uuid.UUID, snapshot json.RawMessage) error {
	log := logger.FromContext(ctx, s.logger).With("execution_id", id)

	job, err := s.jobs.TriggerExecution(ctx, workflow.TriggerRequest{
		ExecutionID: id.String(),
		SystemID:    systemID.String(),
		Snapshot:    snapshot,
	})
	if err != nil {
		s.recordDispatchFailure(ctx, id, err)
		return err
	}

	entry := store.LogEntry{
		Event:   EventDispatched,
		Message: "trigger node " + job.NodeName,
		JobID:   job.JobID,
		At:      s.now().UTC(),
	}
	if err := s.executions.AppendExecutionLog(ctx, id, entry, &job.JobID); err != nil {
		log.Error("failed to record dispatch", "job_id", job.JobID, "error", err)
		return err
	}

	log.Info("execution dispatched", "job_id", job.JobID, "node", job.NodeName)
	return nil
}

func (s *ExecutionService) recordDispatchFailure(ctx context.Context, id uuid.UUID, cause error) {
	log := logger.FromContext(ctx, s.logger).With("execution_id", id)
	log.Error("execution dispatch failed", "error", cause)

	changed, err := s.executions.TransitionExecution(ctx, id,
		store.ExecutionStatusRunning, store.ExecutionStatusFailed,
		&store.LogEntry{Event: EventDispatchFailed, Message: cause.Error(), At: s.now().UTC()},
	)
	if err != nil {
		log.Error("failed to record dispatch failure", "error", err)
		return
	}
	if !changed {
		log.Warn("execution left running before dispatch failure was recorded")
	}
}

// transitionConflict explains why a compare-and-set matched no row.
func (s *ExecutionService) transitionConflict(ctx context.Context, id uuid.UUID) error {
	current, err := s.executions.GetExecutionByID(ctx, id)
	if err != nil {
		return storeFailure(err)
	}
	if current == nil {
		return NotFound("execution not found")
	}
	return Conflict("execution is %s", current.Status)
}

// visibleSystem returns the system if it sits in a workspace the caller
// owns. Anything else is reported as not found.
func (s *ExecutionService) visibleSystem(ctx context.Context, systemID, callerID uuid.UUID) (*store.System, error) {
	sys, err := s.systems.GetSystemByID(ctx, systemID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if sys == nil {
		return nil, NotFound("system not found")
	}

	ws, err := s.workspaces.GetWorkspaceByID(ctx, sys.WorkspaceID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if AssertOwner(ws, callerID, "workspace") != nil {
		return nil, NotFound("system not found")
	}
	return sys, nil
}
