package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("store: duplicate key")

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx
// This allows us to pass either a connection pool or an active transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// Lookups that return a pointer report a missing row as (nil, nil).
// Only infrastructure failures are returned as errors.

// UserStore persists user profiles.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) (*User, error)
}

// WorkspaceStore persists workspaces.
type WorkspaceStore interface {
	CreateWorkspace(ctx context.Context, workspace *Workspace) error
	GetWorkspaceByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
	ListWorkspacesByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Workspace, int, error)
	SearchWorkspaces(ctx context.Context, search WorkspaceSearch) ([]Workspace, int, error)
	UpdateWorkspace(ctx context.Context, id uuid.UUID, patch WorkspacePatch) (*Workspace, error)
	DeleteWorkspace(ctx context.Context, id uuid.UUID) (*Workspace, error)
}

// SystemStore persists systems.
type SystemStore interface {
	// CreateSystem inserts the system and bumps the parent workspace counter
	// in the same transaction.
	CreateSystem(ctx context.Context, system *System) error
	GetSystemByID(ctx context.Context, id uuid.UUID) (*System, error)
	ListSystems(ctx context.Context) ([]System, error)
	ListSystemsByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]System, error)
	UpdateSystem(ctx context.Context, id uuid.UUID, patch SystemPatch) (*System, error)
	DeleteSystem(ctx context.Context, id uuid.UUID) (*System, error)
}

// ExecutionStore persists system executions.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, execution *Execution) error
	GetExecutionByID(ctx context.Context, id uuid.UUID) (*Execution, error)
	ListExecutions(ctx context.Context) ([]Execution, error)
	ListExecutionsBySystem(ctx context.Context, systemID uuid.UUID) ([]Execution, error)
	UpdateExecution(ctx context.Context, id uuid.UUID, patch ExecutionPatch) (*Execution, error)
	DeleteExecution(ctx context.Context, id uuid.UUID) (*Execution, error)

	// TransitionExecution moves the execution from one status to another
	// only if it is currently in `from`. It reports whether the row changed.
	TransitionExecution(ctx context.Context, id uuid.UUID, from, to ExecutionStatus, entry *LogEntry) (bool, error)

	// AppendExecutionLog appends entry to the log array and, when jobID is
	// not nil, records the dispatched queue job.
	AppendExecutionLog(ctx context.Context, id uuid.UUID, entry LogEntry, jobID *string) error

	// ListStaleExecutions returns running executions started before cutoff.
	ListStaleExecutions(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// NodeDefinitionStore persists workflow node definitions.
type NodeDefinitionStore interface {
	CreateNodeDefinition(ctx context.Context, def *NodeDefinition) error
	GetNodeDefinitionByID(ctx context.Context, id uuid.UUID) (*NodeDefinition, error)
	ListNodeDefinitions(ctx context.Context) ([]NodeDefinition, error)
}
