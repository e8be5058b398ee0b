package handlers

import (
	"encoding/json"
	"time"

	"neco/internal/identity"
	"neco/internal/store"
	"neco/pkg/api"
)

var emptyObject = json.RawMessage(`{}`)

func jsonOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return emptyObject
	}
	return raw
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toUser(u *store.User) api.UserResponse {
	return api.UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: timePtr(u.CreatedAt),
		UpdatedAt: timePtr(u.UpdatedAt),
	}
}

func toAccount(u *identity.User) *api.AccountInfo {
	if u == nil {
		return nil
	}
	return &api.AccountInfo{ID: u.ID.String(), Email: u.Email, Role: u.Role}
}

func toSession(s *identity.Session) *api.SessionResponse {
	if s == nil {
		return nil
	}
	return &api.SessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		User:         toAccount(s.User),
	}
}

func toWorkspace(ws *store.Workspace) api.WorkspaceResponse {
	return api.WorkspaceResponse{
		ID:           ws.ID.String(),
		Name:         ws.Name,
		Description:  ws.Description,
		Status:       ws.Status,
		SystemsCount: ws.SystemsCount,
		UserID:       ws.UserID.String(),
		CreatedAt:    ws.CreatedAt,
		UpdatedAt:    ws.UpdatedAt,
	}
}

func toWorkspaces(items []store.Workspace) []api.WorkspaceResponse {
	out := make([]api.WorkspaceResponse, 0, len(items))
	for i := range items {
		out = append(out, toWorkspace(&items[i]))
	}
	return out
}

func toSystem(s *store.System) api.SystemResponse {
	return api.SystemResponse{
		ID:           s.ID.String(),
		Name:         s.Name,
		Description:  s.Description,
		Status:       s.Status,
		GlobalConfig: jsonOrEmpty(s.GlobalConfig),
		NodesCount:   s.NodesCount,
		WorkspaceID:  s.WorkspaceID.String(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toSystems(items []store.System) []api.SystemResponse {
	out := make([]api.SystemResponse, 0, len(items))
	for i := range items {
		out = append(out, toSystem(&items[i]))
	}
	return out
}

func toExecution(e *store.Execution) api.ExecutionResponse {
	logs := make([]api.ExecutionLogEntry, 0, len(e.Logs))
	for _, l := range e.Logs {
		logs = append(logs, api.ExecutionLogEntry{Event: l.Event, Message: l.Message, JobID: l.JobID, At: l.At})
	}
	return api.ExecutionResponse{
		ID:            e.ID.String(),
		SystemID:      e.SystemID.String(),
		SystemJSON:    jsonOrEmpty(e.SystemJSON),
		Logs:          logs,
		Status:        string(e.Status),
		DispatchJobID: e.DispatchJobID,
		StartedAt:     e.StartedAt,
		StoppedAt:     e.StoppedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toExecutions(items []store.Execution) []api.ExecutionResponse {
	out := make([]api.ExecutionResponse, 0, len(items))
	for i := range items {
		out = append(out, toExecution(&items[i]))
	}
	return out
}

func toNodeDefinitions(items []store.NodeDefinition) []api.NodeDefinitionResponse {
	out := make([]api.NodeDefinitionResponse, 0, len(items))
	for i := range items {
		out = append(out, toNodeDefinition(&items[i]))
	}
	return out
}

func toNodeDefinition(d *store.NodeDefinition) api.NodeDefinitionResponse {
	return api.NodeDefinitionResponse{
		ID:           d.ID.String(),
		Name:         d.Name,
		Type:         d.Type,
		Description:  d.Description,
		Parameters:   jsonOrEmpty(d.Parameters),
		IsPublic:     d.IsPublic,
		InputSchema:  d.InputSchema,
		OutputSchema: jsonOrEmpty(d.OutputSchema),
		CreatedBy:    d.CreatedBy.String(),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
