// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"neco/internal/identity"
	"neco/internal/logger"
	"neco/internal/service"
	"neco/internal/store"
	"neco/pkg/api"

	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// UserService handles accounts and sessions.
type UserService interface {
	SignUp(ctx context.Context, params service.SignUpParams) (*store.User, *identity.Session, error)
	Login(ctx context.Context, email, password string) (*identity.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
	Logout(ctx context.Context, accessToken string) error
}

type WorkspaceService interface {
	CreateWorkspace(ctx context.Context, name string, description *string, ownerID uuid.UUID) (*store.Workspace, error)
	GetWorkspace(ctx context.Context, id, callerID uuid.UUID) (*store.Workspace, error)
	ListWorkspaces(ctx context.Context, callerID uuid.UUID, page, perPage int) ([]store.Workspace, int, error)
	SearchWorkspaces(ctx context.Context, callerID uuid.UUID, params service.SearchParams) ([]store.Workspace, int, error)
	UpdateWorkspace(ctx context.Context, id, callerID uuid.UUID, patch store.WorkspacePatch) (*store.Workspace, error)
	DeleteWorkspace(ctx context.Context, id, callerID uuid.UUID) error
}

type SystemService interface {
	CreateSystem(ctx context.Context, name string, description *string, workspaceID, callerID uuid.UUID) (*store.System, error)
	GetSystem(ctx context.Context, workspaceID, systemID, callerID uuid.UUID) (*store.System, error)
	ListSystems(ctx context.Context, workspaceID, callerID uuid.UUID) ([]store.System, int, error)
	ActivateSystem(ctx context.Context, workspaceID, systemID, callerID uuid.UUID) (*store.System, error)
}

type ExecutionService interface {
	CreateExecution(ctx context.Context, callerID, systemID uuid.UUID, systemJSON json.RawMessage, initialStatus string) (*store.Execution, error)
	GetExecution(ctx context.Context, callerID, id uuid.UUID) (*store.Execution, error)
	ListExecutions(ctx context.Context, callerID, systemID uuid.UUID) ([]store.Execution, int, error)
	StartExecution(ctx context.Context, callerID, id uuid.UUID) error
	CompleteExecution(ctx context.Context, id uuid.UUID, succeeded bool, message string) (*store.Execution, error)
}

type NodeDefinitionService interface {
	GetNodeDefinition(ctx context.Context, id, callerID uuid.UUID) (*store.NodeDefinition, error)
	ListNodeDefinitions(ctx context.Context, callerID uuid.UUID) ([]store.NodeDefinition, int, error)
}

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CookieConfig controls the session cookies set on login and refresh.
type CookieConfig struct {
	Secure bool
	Domain string
}

// Deps are the collaborators of Handlers.
type Deps struct {
	Users           UserService
	Workspaces      WorkspaceService
	Systems         SystemService
	Executions      ExecutionService
	NodeDefinitions NodeDefinitionService
	Checks          map[string]Pinger
	Cookies         CookieConfig
	Logger          *slog.Logger
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	users      UserService
	workspaces WorkspaceService
	systems    SystemService
	executions ExecutionService
	nodeDefs   NodeDefinitionService
	checks     map[string]Pinger
	cookies    CookieConfig
	log        *slog.Logger
}

func New(d Deps) *Handlers {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		users:      d.Users,
		workspaces: d.Workspaces,
		systems:    d.Systems,
		executions: d.Executions,
		nodeDefs:   d.NodeDefinitions,
		checks:     d.Checks,
		cookies:    d.Cookies,
		log:        log,
	}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	case service.KindBadRequest:
		return http.StatusBadRequest
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// serviceError maps a service failure to its status code. Only the
// client-safe message is written; the cause is logged for 5xx.
func (h *Handlers) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(service.KindOf(err))
	if code >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), h.log).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	h.httpError(w, service.MessageOf(err), code)
}

// decode reads a JSON body. An empty body is an error.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.httpError(w, "request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			h.httpError(w, "request body is required", http.StatusBadRequest)
		default:
			h.httpError(w, "invalid request body", http.StatusBadRequest)
		}
		return false
	}
	return true
}

// pathID parses a uuid path value, writing a 400 on failure.
func (h *Handlers) pathID(w http.ResponseWriter, r *http.Request, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		h.httpError(w, "invalid "+what+" id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
