// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import (
	"encoding/json"
	"time"
)

// SignupRequest is the request body for POST /auth/signup.
type SignupRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Username *string `json:"username,omitempty"`
	Role     string  `json:"role,omitempty"`
}

// SignupResponse carries the new user. Session is null when the identity
// provider requires email confirmation first.
type SignupResponse struct {
	User    UserResponse     `json:"user"`
	Session *SessionResponse `json:"session"`
	Message string           `json:"message"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for POST /auth/refresh. The token may
// also come from the refresh_token cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SessionResponse is returned by login and refresh.
type SessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in,omitempty"`
	User         *AccountInfo `json:"user,omitempty"`
}

// AccountInfo is the identity provider's view of a user.
type AccountInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse is a local user profile.
type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Username  *string    `json:"username"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// CreateWorkspaceRequest is the request body for POST /workspaces.
type CreateWorkspaceRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// UpdateWorkspaceRequest is the request body for PATCH /workspaces/{id}.
type UpdateWorkspaceRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// SearchWorkspaceRequest is the request body for POST /workspaces/search.
// Page and PerPage are optional.
type SearchWorkspaceRequest struct {
	Name    *string `json:"name"`
	Status  *string `json:"status"`
	Sorting *string `json:"sorting"`
	Order   *string `json:"order"`
	Page    int     `json:"page,omitempty"`
	PerPage int     `json:"per_page,omitempty"`
}

// WorkspaceResponse represents a workspace in API responses.
type WorkspaceResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	Status       string    `json:"status"`
	SystemsCount int       `json:"systems_count"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WorkspaceListResponse is returned by list and search. Page and PerPage
// are set only for paged requests.
type WorkspaceListResponse struct {
	Workspaces []WorkspaceResponse `json:"workspaces"`
	Total      int                 `json:"total"`
	Page       *int                `json:"page,omitempty"`
	PerPage    *int                `json:"per_page,omitempty"`
}

// CreateSystemRequest is the request body for POST /workspaces/system.
type CreateSystemRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	WorkspaceID string  `json:"workspace_id"`
}

// SystemResponse represents a system in API responses.
type SystemResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  *string         `json:"description"`
	Status       string          `json:"status"`
	GlobalConfig json.RawMessage `json:"global_config"`
	NodesCount   int             `json:"nodes_count"`
	WorkspaceID  string          `json:"workspace_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SystemListResponse lists the systems of a workspace.
type SystemListResponse struct {
	Systems []SystemResponse `json:"systems"`
	Total   int              `json:"total"`
}

// CreateExecutionRequest is the request body for POST /executions.
type CreateExecutionRequest struct {
	SystemID   string          `json:"system_id"`
	SystemJSON json.RawMessage `json:"system_json,omitempty"`
	Status     string          `json:"status,omitempty"`
}

// ExecutionLogEntry is one element of an execution log.
type ExecutionLogEntry struct {
	Event   string    `json:"event"`
	Message string    `json:"message,omitempty"`
	JobID   string    `json:"job_id,omitempty"`
	At      time.Time `json:"at"`
}

// ExecutionResponse represents an execution in API responses.
type ExecutionResponse struct {
	ID            string              `json:"id"`
	SystemID      string              `json:"system_id"`
	SystemJSON    json.RawMessage     `json:"system_json"`
	Logs          []ExecutionLogEntry `json:"logs"`
	Status        string              `json:"status"`
	DispatchJobID *string             `json:"dispatch_job_id,omitempty"`
	StartedAt     *time.Time          `json:"started_at"`
	StoppedAt     *time.Time          `json:"stopped_at"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// ExecutionListResponse lists the executions of a system.
type ExecutionListResponse struct {
	Executions []ExecutionResponse `json:"executions"`
	Total      int                 `json:"total"`
}

// StartExecutionResponse acknowledges an accepted start.
type StartExecutionResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ExecutionResultRequest is sent by queue consumers when a run finishes.
type ExecutionResultRequest struct {
	Succeeded bool   `json:"succeeded"`
	Message   string `json:"message,omitempty"`
}

// NodeDefinitionResponse represents a node definition.
type NodeDefinitionResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Description  *string         `json:"description"`
	Parameters   json.RawMessage `json:"parameters"`
	IsPublic     bool            `json:"is_public"`
	InputSchema  *string         `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NodeDefinitionListResponse lists the node definitions visible to the caller.
type NodeDefinitionListResponse struct {
	NodeDefinitions []NodeDefinitionResponse `json:"node_definitions"`
	Total           int                      `json:"total"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Pagination defaults for GET /workspaces.
const (
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100
)
