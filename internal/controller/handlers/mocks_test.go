package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"neco/internal/controller/middleware"
	"neco/internal/identity"
	"neco/internal/service"
	"neco/internal/store"
	"neco/pkg/api"

	"github.com/google/uuid"
)

type mockUsers struct {
	signUp  func(service.SignUpParams) (*store.User, *identity.Session, error)
	login   func(email, password string) (*identity.Session, error)
	refresh func(token string) (*identity.Session, error)
	logout  func(token string) error
}

func (m *mockUsers) SignUp(_ context.Context, p service.SignUpParams) (*store.User, *identity.Session, error) {
	return m.signUp(p)
}
func (m *mockUsers) Login(_ context.Context, email, password string) (*identity.Session, error) {
	return m.login(email, password)
}
func (m *mockUsers) Refresh(_ context.Context, token string) (*identity.Session, error) {
	return m.refresh(token)
}
func (m *mockUsers) Logout(_ context.Context, token string) error { return m.logout(token) }

type mockWorkspaces struct {
	create func(name string, description *string, ownerID uuid.UUID) (*store.Workspace, error)
	get    func(id, callerID uuid.UUID) (*store.Workspace, error)
	list   func(callerID uuid.UUID, page, perPage int) ([]store.Workspace, int, error)
	search func(callerID uuid.UUID, p service.SearchParams) ([]store.Workspace, int, error)
	update func(id, callerID uuid.UUID, patch store.WorkspacePatch) (*store.Workspace, error)
	delete func(id, callerID uuid.UUID) error
}

func (m *mockWorkspaces) CreateWorkspace(_ context.Context, name string, description *string, ownerID uuid.UUID) (*store.Workspace, error) {
	return m.create(name, description, ownerID)
}
func (m *mockWorkspaces) GetWorkspace(_ context.Context, id, callerID uuid.UUID) (*store.Workspace, error) {
	return m.get(id, callerID)
}
func (m *mockWorkspaces) ListWorkspaces(_ context.Context, callerID uuid.UUID, page, perPage int) ([]store.Workspace, int, error) {
	return m.list(callerID, page, perPage)
}
func (m *mockWorkspaces) SearchWorkspaces(_ context.Context, callerID uuid.UUID, p service.SearchParams) ([]store.Workspace, int, error) {
	return m.search(callerID, p)
}
func (m *mockWorkspaces) UpdateWorkspace(_ context.Context, id, callerID uuid.UUID, patch store.WorkspacePatch) (*store.Workspace, error) {
	return m.update(id, callerID, patch)
}
func (m *mockWorkspaces) DeleteWorkspace(_ context.Context, id, callerID uuid.UUID) error {
	return m.delete(id, callerID)
}

type mockSystems struct {
	create   func(name string, description *string, workspaceID, callerID uuid.UUID) (*store.System, error)
	get      func(workspaceID, systemID, callerID uuid.UUID) (*store.System, error)
	list     func(workspaceID, callerID uuid.UUID) ([]store.System, int, error)
	activate func(workspaceID, systemID, callerID uuid.UUID) (*store.System, error)
}

func (m *mockSystems) CreateSystem(_ context.Context, name string, description *string, workspaceID, callerID uuid.UUID) (*store.System, error) {
	return m.create(name, description, workspaceID, callerID)
}
func (m *mockSystems) GetSystem(_ context.Context, workspaceID, systemID, callerID uuid.UUID) (*store.System, error) {
	return m.get(workspaceID, systemID, callerID)
}
func (m *mockSystems) ListSystems(_ context.Context, workspaceID, callerID uuid.UUID) ([]store.System, int, error) {
	return m.list(workspaceID, callerID)
}
func (m *mockSystems) ActivateSystem(_ context.Context, workspaceID, systemID, callerID uuid.UUID) (*store.System, error) {
	return m.activate(workspaceID, systemID, callerID)
}

type mockExecutions struct {
	create   func(callerID, systemID uuid.UUID, systemJSON json.RawMessage, status string) (*store.Execution, error)
	get      func(callerID, id uuid.UUID) (*store.Execution, error)
	list     func(callerID, systemID uuid.UUID) ([]store.Execution, int, error)
	start    func(callerID, id uuid.UUID) error
	complete func(id uuid.UUID, succeeded bool, message string) (*store.Execution, error)
}

func (m *mockExecutions) CreateExecution(_ context.Context, callerID, systemID uuid.UUID, systemJSON json.RawMessage, status string) (*store.Execution, error) {
	return m.create(callerID, systemID, systemJSON, status)
}
func (m *mockExecutions) GetExecution(_ context.Context, callerID, id uuid.UUID) (*store.Execution, error) {
	return m.get(callerID, id)
}
func (m *mockExecutions) ListExecutions(_ context.Context, callerID, systemID uuid.UUID) ([]store.Execution, int, error) {
	return m.list(callerID, systemID)
}
func (m *mockExecutions) StartExecution(_ context.Context, callerID, id uuid.UUID) error {
	return m.start(callerID, id)
}
func (m *mockExecutions) CompleteExecution(_ context.Context, id uuid.UUID, succeeded bool, message string) (*store.Execution, error) {
	return m.complete(id, succeeded, message)
}

type mockNodeDefs struct {
	get  func(id, callerID uuid.UUID) (*store.NodeDefinition, error)
	list func(callerID uuid.UUID) ([]store.NodeDefinition, int, error)
}

func (m *mockNodeDefs) ListNodeDefinitions(_ context.Context, callerID uuid.UUID) ([]store.NodeDefinition, int, error) {
	return m.list(callerID)
}

func (m *mockNodeDefs) GetNodeDefinition(_ context.Context, id, callerID uuid.UUID) (*store.NodeDefinition, error) {
	return m.get(id, callerID)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var errDBDown = errors.New("dial tcp 127.0.0.1:5432: connection refused")

func testHandlers(d Deps) *Handlers {
	d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(d)
}

// serve runs handler with an optional authenticated caller and returns the
// recorder. pattern registers the handler on a mux so PathValue works.
func serve(t *testing.T, pattern string, handler http.HandlerFunc, method, target string, body any, callerID *uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if callerID != nil {
		caller := &service.Caller{Auth: &identity.User{ID: *callerID, Email: "ada@example.com"}}
		req = req.WithContext(middleware.NewContextWithCaller(req.Context(), caller))
	}

	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp
}
