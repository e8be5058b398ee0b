// Package store contains the database layer for neco.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is the local profile of an identity provider account.
// The ID is the one issued by the identity provider.
type User struct {
	ID        uuid.UUID
	Email     string
	Username  *string
	Role      string
	AvatarURL *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserPatch lists the user fields that may change after sign-up.
type UserPatch struct {
	Username  *string
	Role      *string
	AvatarURL *string
}

// Workspace is a user-owned container of systems.
// UserID is set at creation and never changes.
type Workspace struct {
	ID           uuid.UUID
	Name         string
	Description  *string
	Status       string
	SystemsCount int
	UserID       uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OwnerID returns the owning user.
func (w *Workspace) OwnerID() uuid.UUID { return w.UserID }

// WorkspacePatch is a partial update. Nil fields are left untouched.
type WorkspacePatch struct {
	Name        *string
	Description *string
	Status      *string
}

// WorkspaceSearch holds the filters for SearchWorkspaces.
type WorkspaceSearch struct {
	UserID    uuid.UUID
	Name      string // case-insensitive substring
	Status    string // exact match
	SortField string // ignored unless it names a sortable column
	SortOrder string // "desc", anything else is ascending
	Offset    int
	Limit     int // 0 means no limit
}

// System is a named configuration unit inside exactly one workspace.
type System struct {
	ID           uuid.UUID
	Name         string
	Description  *string
	Status       string
	GlobalConfig json.RawMessage
	NodesCount   int
	WorkspaceID  uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SystemPatch is a partial update. Nil fields are left untouched.
type SystemPatch struct {
	Name         *string
	Description  *string
	Status       *string
	GlobalConfig json.RawMessage
	NodesCount   *int
}

// Execution is a run record of a system: a snapshot of its workflow
// definition plus status and timestamps.
type Execution struct {
	ID            uuid.UUID
	SystemID      uuid.UUID
	SystemJSON    json.RawMessage
	Logs          []LogEntry
	Status        ExecutionStatus
	DispatchJobID *string
	StartedAt     *time.Time
	StoppedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ExecutionPatch is a partial update of the non-lifecycle execution fields.
// Status only moves through TransitionExecution.
type ExecutionPatch struct {
	SystemJSON json.RawMessage
}

// LogEntry is one element of the execution log array.
type LogEntry struct {
	Event   string    `json:"event"`
	Message string    `json:"message,omitempty"`
	JobID   string    `json:"job_id,omitempty"`
	At      time.Time `json:"at"`
}

// ExecutionStatus represents the state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusCreated   ExecutionStatus = "created"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// CanTransition reports whether the state machine allows s -> next.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	switch s {
	case ExecutionStatusCreated:
		return next == ExecutionStatusRunning
	case ExecutionStatusRunning:
		return next == ExecutionStatusCompleted || next == ExecutionStatusFailed
	}
	return false
}

// NodeDefinition describes a reusable workflow node type, such as the
// file upload trigger.
type NodeDefinition struct {
	ID           uuid.UUID
	Name         string
	Type         string
	Description  *string
	Parameters   json.RawMessage
	IsPublic     bool
	InputSchema  *string
	OutputSchema json.RawMessage
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Workspace and system status values.
const (
	WorkspaceStatusActive = "active"
	SystemStatusInactive  = "inactive"
	SystemStatusActive    = "active"
	DefaultUserRole       = "user"
)
