package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"neco/internal/identity"
	"neco/internal/store"
	"neco/internal/workflow"

	"github.com/google/uuid"
)

var errDBDown = errors.New("connection refused")

// memStore is an in-memory implementation of every store interface the
// services use. failNext makes the next call fail.
type memStore struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*store.User
	workspaces map[uuid.UUID]*store.Workspace
	systems    map[uuid.UUID]*store.System
	executions map[uuid.UUID]*store.Execution
	nodeDefs   map[uuid.UUID]*store.NodeDefinition
	nodeReads  int
	failNext   error
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[uuid.UUID]*store.User{},
		workspaces: map[uuid.UUID]*store.Workspace{},
		systems:    map[uuid.UUID]*store.System{},
		executions: map[uuid.UUID]*store.Execution{},
		nodeDefs:   map[uuid.UUID]*store.NodeDefinition{},
	}
}

func (m *memStore) fail() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memStore) CreateUser(_ context.Context, u *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListUsers(context.Context) ([]store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.User{}
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memStore) UpdateUser(_ context.Context, id uuid.UUID, p store.UserPatch) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if p.Username != nil {
		u.Username = p.Username
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) DeleteUser(_ context.Context, id uuid.UUID) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	delete(m.users, id)
	return u, nil
}

func (m *memStore) CreateWorkspace(_ context.Context, ws *store.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	ws.CreatedAt = time.Now()
	cp := *ws
	m.workspaces[ws.ID] = &cp
	return nil
}

func (m *memStore) GetWorkspaceByID(_ context.Context, id uuid.UUID) (*store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	if ws, ok := m.workspaces[id]; ok {
		cp := *ws
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListWorkspaces(context.Context) ([]store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Workspace{}
	for _, ws := range m.workspaces {
		out = append(out, *ws)
	}
	return out, nil
}

func (m *memStore) ListWorkspacesByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]store.Workspace, int, error) {
	return m.SearchWorkspaces(ctx, store.WorkspaceSearch{UserID: userID, SortField: "name", Offset: offset, Limit: limit})
}

func (m *memStore) SearchWorkspaces(_ context.Context, s store.WorkspaceSearch) ([]store.Workspace, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, 0, err
	}
	matched := []store.Workspace{}
	for _, ws := range m.workspaces {
		if ws.UserID != s.UserID {
			continue
		}
		if s.Name != "" && !strings.Contains(strings.ToLower(ws.Name), strings.ToLower(s.Name)) {
			continue
		}
		if s.Status != "" && ws.Status != s.Status {
			continue
		}
		matched = append(matched, *ws)
	}
	sort.Slice(matched, func(i, j int) bool {
		if strings.EqualFold(s.SortOrder, "desc") {
			return matched[i].Name > matched[j].Name
		}
		return matched[i].Name < matched[j].Name
	})

	total := len(matched)
	if s.Offset > len(matched) {
		s.Offset = len(matched)
	}
	matched = matched[s.Offset:]
	if s.Limit > 0 && s.Limit < len(matched) {
		matched = matched[:s.Limit]
	}
	return matched, total, nil
}

func (m *memStore) UpdateWorkspace(_ context.Context, id uuid.UUID, p store.WorkspacePatch) (*store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, nil
	}
	if p.Name != nil {
		ws.Name = *p.Name
	}
	if p.Description != nil {
		ws.Description = p.Description
	}
	if p.Status != nil {
		ws.Status = *p.Status
	}
	cp := *ws
	return &cp, nil
}

func (m *memStore) DeleteWorkspace(_ context.Context, id uuid.UUID) (*store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, nil
	}
	delete(m.workspaces, id)
	return ws, nil
}

func (m *memStore) CreateSystem(_ context.Context, sys *store.System) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	ws, ok := m.workspaces[sys.WorkspaceID]
	if !ok {
		return errors.New("workspace vanished")
	}
	ws.SystemsCount++
	cp := *sys
	m.systems[sys.ID] = &cp
	return nil
}

func (m *memStore) GetSystemByID(_ context.Context, id uuid.UUID) (*store.System, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	if sys, ok := m.systems[id]; ok {
		cp := *sys
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListSystems(context.Context) ([]store.System, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.System{}
	for _, sys := range m.systems {
		out = append(out, *sys)
	}
	return out, nil
}

func (m *memStore) ListSystemsByWorkspace(_ context.Context, workspaceID uuid.UUID) ([]store.System, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	out := []store.System{}
	for _, sys := range m.systems {
		if sys.WorkspaceID == workspaceID {
			out = append(out, *sys)
		}
	}
	return out, nil
}

func (m *memStore) UpdateSystem(_ context.Context, id uuid.UUID, p store.SystemPatch) (*store.System, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	sys, ok := m.systems[id]
	if !ok {
		return nil, nil
	}
	if p.Name != nil {
		sys.Name = *p.Name
	}
	if p.Status != nil {
		sys.Status = *p.Status
	}
	if p.GlobalConfig != nil {
		sys.GlobalConfig = p.GlobalConfig
	}
	cp := *sys
	return &cp, nil
}

func (m *memStore) DeleteSystem(_ context.Context, id uuid.UUID) (*store.System, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sys, ok := m.systems[id]
	if !ok {
		return nil, nil
	}
	delete(m.systems, id)
	if ws, ok := m.workspaces[sys.WorkspaceID]; ok && ws.SystemsCount > 0 {
		ws.SystemsCount--
	}
	return sys, nil
}

func (m *memStore) CreateExecution(_ context.Context, e *store.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	cp := *e
	cp.Logs = append([]store.LogEntry{}, e.Logs...)
	m.executions[e.ID] = &cp
	return nil
}

func (m *memStore) GetExecutionByID(_ context.Context, id uuid.UUID) (*store.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	if e, ok := m.executions[id]; ok {
		cp := *e
		cp.Logs = append([]store.LogEntry{}, e.Logs...)
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListExecutions(context.Context) ([]store.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Execution{}
	for _, e := range m.executions {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memStore) ListExecutionsBySystem(_ context.Context, systemID uuid.UUID) ([]store.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	out := []store.Execution{}
	for _, e := range m.executions {
		if e.SystemID == systemID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) UpdateExecution(_ context.Context, id uuid.UUID, p store.ExecutionPatch) (*store.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, nil
	}
	if p.SystemJSON != nil {
		e.SystemJSON = p.SystemJSON
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) DeleteExecution(_ context.Context, id uuid.UUID) (*store.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, nil
	}
	delete(m.executions, id)
	return e, nil
}

func (m *memStore) TransitionExecution(_ context.Context, id uuid.UUID, from, to store.ExecutionStatus, entry *store.LogEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return false, err
	}
	if !from.CanTransition(to) {
		return false, errors.New("illegal transition")
	}
	e, ok := m.executions[id]
	if !ok || e.Status != from {
		return false, nil
	}
	now := time.Now()
	e.Status = to
	if to == store.ExecutionStatusRunning {
		e.StartedAt = &now
	}
	if to.Terminal() {
		e.StoppedAt = &now
	}
	if entry != nil {
		e.Logs = append(e.Logs, *entry)
	}
	return true, nil
}

func (m *memStore) AppendExecutionLog(_ context.Context, id uuid.UUID, entry store.LogEntry, jobID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	e, ok := m.executions[id]
	if !ok {
		return nil
	}
	e.Logs = append(e.Logs, entry)
	if jobID != nil {
		e.DispatchJobID = jobID
	}
	return nil
}

func (m *memStore) ListStaleExecutions(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for id, e := range m.executions {
		if e.Status == store.ExecutionStatusRunning && e.StartedAt != nil && e.StartedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) CreateNodeDefinition(_ context.Context, def *store.NodeDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *def
	m.nodeDefs[def.ID] = &cp
	return nil
}

func (m *memStore) GetNodeDefinitionByID(_ context.Context, id uuid.UUID) (*store.NodeDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodeReads++
	if err := m.fail(); err != nil {
		return nil, err
	}
	if def, ok := m.nodeDefs[id]; ok {
		cp := *def
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListNodeDefinitions(context.Context) ([]store.NodeDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	out := []store.NodeDefinition{}
	for _, def := range m.nodeDefs {
		out = append(out, *def)
	}
	return out, nil
}

// execution returns the stored row without going through the service.
func (m *memStore) execution(id uuid.UUID) store.Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.executions[id]
}

func (m *memStore) system(id uuid.UUID) store.System {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.systems[id]
}

// inlineDispatcher runs tasks synchronously, or refuses them when rejectWith
// is set.
type inlineDispatcher struct {
	mu         sync.Mutex
	names      []string
	taskErrs   []error
	rejectWith error
}

func (d *inlineDispatcher) Submit(ctx context.Context, name string, task func(ctx context.Context) error) error {
	if d.rejectWith != nil {
		return d.rejectWith
	}
	err := task(context.WithoutCancel(ctx))
	d.mu.Lock()
	d.names = append(d.names, name)
	d.taskErrs = append(d.taskErrs, err)
	d.mu.Unlock()
	return nil
}

type enqueuedTask struct {
	workflowID string
	taskName   string
	payload    json.RawMessage
}

// fakeJobs records what would have been pushed to the queue.
type fakeJobs struct {
	mu       sync.Mutex
	triggers []workflow.TriggerRequest
	tasks    []enqueuedTask
	err      error
}

func (f *fakeJobs) TriggerExecution(_ context.Context, req workflow.TriggerRequest) (*workflow.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.triggers = append(f.triggers, req)
	return &workflow.Job{
		JobID:        "job-" + req.ExecutionID[:8],
		NodeName:     "Upload",
		ExecID:       req.ExecutionID,
		WorkflowID:   req.SystemID,
		IsTriggerJob: true,
	}, nil
}

func (f *fakeJobs) EnqueueTask(_ context.Context, workflowID, taskName string, payload json.RawMessage) (*workflow.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, enqueuedTask{workflowID: workflowID, taskName: taskName, payload: payload})
	return &workflow.Job{JobID: "task-" + workflowID[:8], TaskName: taskName, WorkflowID: workflowID}, nil
}

// fakeIdentity is an in-memory identity provider keyed by email.
type fakeIdentity struct {
	accounts map[string]fakeAccount
	tokens   map[string]*identity.User
	confirm  bool
	err      error
}

type fakeAccount struct {
	user     *identity.User
	password string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: map[string]fakeAccount{}, tokens: map[string]*identity.User{}}
}

func (f *fakeIdentity) SignUp(_ context.Context, email, password string) (*identity.User, *identity.Session, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	if _, ok := f.accounts[email]; ok {
		return nil, nil, errors.Join(identity.ErrUnauthenticated, errors.New("User already registered"))
	}
	u := &identity.User{ID: uuid.New(), Email: email, Role: "authenticated"}
	f.accounts[email] = fakeAccount{user: u, password: password}
	if f.confirm {
		return u, nil, nil
	}
	return u, f.issue(u), nil
}

func (f *fakeIdentity) SignIn(_ context.Context, email, password string) (*identity.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	acct, ok := f.accounts[email]
	if !ok || acct.password != password {
		return nil, errors.Join(identity.ErrUnauthenticated, errors.New("Invalid login credentials"))
	}
	return f.issue(acct.user), nil
}

func (f *fakeIdentity) Refresh(_ context.Context, refreshToken string) (*identity.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.tokens["refresh:"+refreshToken]
	if !ok {
		return nil, identity.ErrUnauthenticated
	}
	delete(f.tokens, "refresh:"+refreshToken)
	return f.issue(u), nil
}

func (f *fakeIdentity) SignOut(_ context.Context, accessToken string) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.tokens[accessToken]; !ok {
		return identity.ErrUnauthenticated
	}
	delete(f.tokens, accessToken)
	return nil
}

func (f *fakeIdentity) GetUser(_ context.Context, accessToken string) (*identity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.tokens[accessToken]
	if !ok {
		return nil, identity.ErrUnauthenticated
	}
	return u, nil
}

func (f *fakeIdentity) issue(u *identity.User) *identity.Session {
	access, refresh := uuid.NewString(), uuid.NewString()
	f.tokens[access] = u
	f.tokens["refresh:"+refresh] = u
	return &identity.Session{AccessToken: access, RefreshToken: refresh, TokenType: "bearer", ExpiresIn: 3600, User: u}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
