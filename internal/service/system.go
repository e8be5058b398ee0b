package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"neco/internal/store"
	"neco/internal/workflow"

	"github.com/google/uuid"
)

// ActivateTaskName is the task_name of the activation message.
const ActivateTaskName = "system.activate"

// Dispatcher runs work after the request that scheduled it has returned.
type Dispatcher interface {
	Submit(ctx context.Context, name string, task func(ctx context.Context) error) error
}

// JobQueue pushes workflow jobs onto the work queue.
type JobQueue interface {
	TriggerExecution(ctx context.Context, req workflow.TriggerRequest) (*workflow.Job, error)
	EnqueueTask(ctx context.Context, workflowID, taskName string, payload json.RawMessage) (*workflow.Job, error)
}

// SystemService manages systems inside workspaces.
type SystemService struct {
	workspaces store.WorkspaceStore
	systems    store.SystemStore
	dispatcher Dispatcher
	jobs       JobQueue
	logger     *slog.Logger
}

func NewSystemService(workspaces store.WorkspaceStore, systems store.SystemStore, dispatcher Dispatcher, jobs JobQueue, logger *slog.Logger) *SystemService {
	return &SystemService{
		workspaces: workspaces,
		systems:    systems,
		dispatcher: dispatcher,
		jobs:       jobs,
		logger:     logger,
	}
}

// CreateSystem adds a system to a workspace the caller owns. Nothing is
// written when the ownership check fails.
func (s *SystemService) CreateSystem(ctx context.Context, name string, description *string, workspaceID, callerID uuid.UUID) (*store.System, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, BadRequest("name is required")
	}
	if _, err := s.ownedWorkspace(ctx, workspaceID, callerID); err != nil {
		return nil, err
	}

	sys := &store.System{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Status:      store.SystemStatusInactive,
		WorkspaceID: workspaceID,
	}
	if err := s.systems.CreateSystem(ctx, sys); err != nil {
		return nil, storeFailure(err)
	}
	return sys, nil
}

// GetSystem returns a system of an owned workspace. A system from another
// workspace is reported as not found.
func (s *SystemService) GetSystem(ctx context.Context, workspaceID, systemID, callerID uuid.UUID) (*store.System, error) {
	if _, err := s.ownedWorkspace(ctx, workspaceID, callerID); err != nil {
		return nil, err
	}

	sys, err := s.systems.GetSystemByID(ctx, systemID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if sys == nil || sys.WorkspaceID != workspaceID {
		return nil, NotFound("system not found in this workspace")
	}
	return sys, nil
}

func (s *SystemService) ListSystems(ctx context.Context, workspaceID, callerID uuid.UUID) ([]store.System, int, error) {
	if _, err := s.ownedWorkspace(ctx, workspaceID, callerID); err != nil {
		return nil, 0, err
	}

	systems, err := s.systems.ListSystemsByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, 0, storeFailure(err)
	}
	return systems, len(systems), nil
}

// ActivateSystem marks the system active and hands an activation message to
// the dispatcher. If the dispatcher refuses the task the status is restored.
func (s *SystemService) ActivateSystem(ctx context.Context, workspaceID, systemID, callerID uuid.UUID) (*store.System, error) {
	sys, err := s.GetSystem(ctx, workspaceID, systemID, callerID)
	if err != nil {
		return nil, err
	}

	previous := sys.Status
	active := store.SystemStatusActive
	updated, err := s.systems.UpdateSystem(ctx, systemID, store.SystemPatch{Status: &active})
	if err != nil {
		return nil, storeFailure(err)
	}
	if updated == nil {
		return nil, NotFound("system not found in this workspace")
	}

	workflowID := systemID.String()
	config := updated.GlobalConfig
	err = s.dispatcher.Submit(ctx, ActivateTaskName, func(ctx context.Context) error {
		job, err := s.jobs.EnqueueTask(ctx, workflowID, ActivateTaskName, config)
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "system activation enqueued", "system_id", workflowID, "job_id", job.JobID)
		return nil
	})
	if err != nil {
		if _, rerr := s.systems.UpdateSystem(ctx, systemID, store.SystemPatch{Status: &previous}); rerr != nil {
			s.logger.ErrorContext(ctx, "failed to restore system status", "system_id", workflowID, "error", rerr)
		}
		return nil, &Error{Kind: KindUpstream, Message: "dispatcher unavailable", Err: err}
	}
	return updated, nil
}

func (s *SystemService) ownedWorkspace(ctx context.Context, id, callerID uuid.UUID) (*store.Workspace, error) {
	ws, err := s.workspaces.GetWorkspaceByID(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if err := AssertOwner(ws, callerID, "workspace"); err != nil {
		return nil, err
	}
	return ws, nil
}
