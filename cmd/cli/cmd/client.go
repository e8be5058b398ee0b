package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"neco/pkg/api"
)

// NecoClient handles API calls to the neco controller.
type NecoClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewNecoClient creates a new client with the given base URL and token.
func NewNecoClient(baseURL, token string) *NecoClient {
	return &NecoClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// do sends one request and decodes a 2xx response into out.
func (c *NecoClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.Token != "" {
		httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage extracts the error field of an api.ErrorResponse, falling
// back to the raw body.
func errorMessage(body []byte) string {
	var e api.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}

// Login sends POST /auth/login.
func (c *NecoClient) Login(req api.LoginRequest) (*api.SessionResponse, error) {
	var result api.SessionResponse
	if err := c.do(http.MethodPost, "/auth/login", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Me sends GET /user/me.
func (c *NecoClient) Me() (*api.UserResponse, error) {
	var result api.UserResponse
	if err := c.do(http.MethodGet, "/user/me", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateWorkspace sends POST /workspaces.
func (c *NecoClient) CreateWorkspace(req api.CreateWorkspaceRequest) (*api.WorkspaceResponse, error) {
	var result api.WorkspaceResponse
	if err := c.do(http.MethodPost, "/workspaces", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListWorkspaces sends GET /workspaces?page=&per_page=.
func (c *NecoClient) ListWorkspaces(page, perPage int) (*api.WorkspaceListResponse, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("per_page", fmt.Sprint(perPage))

	var result api.WorkspaceListResponse
	if err := c.do(http.MethodGet, "/workspaces?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchWorkspaces sends POST /workspaces/search.
func (c *NecoClient) SearchWorkspaces(req api.SearchWorkspaceRequest) (*api.WorkspaceListResponse, error) {
	var result api.WorkspaceListResponse
	if err := c.do(http.MethodPost, "/workspaces/search", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetWorkspace sends GET /workspaces/{id}.
func (c *NecoClient) GetWorkspace(id string) (*api.WorkspaceResponse, error) {
	var result api.WorkspaceResponse
	if err := c.do(http.MethodGet, "/workspaces/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteWorkspace sends DELETE /workspaces/{id}.
func (c *NecoClient) DeleteWorkspace(id string) error {
	return c.do(http.MethodDelete, "/workspaces/"+url.PathEscape(id), nil, nil)
}

// CreateSystem sends POST /workspaces/system.
func (c *NecoClient) CreateSystem(req api.CreateSystemRequest) (*api.SystemResponse, error) {
	var result api.SystemResponse
	if err := c.do(http.MethodPost, "/workspaces/system", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListSystems sends GET /workspaces/{workspace_id}/systems.
func (c *NecoClient) ListSystems(workspaceID string) (*api.SystemListResponse, error) {
	var result api.SystemListResponse
	path := fmt.Sprintf("/workspaces/%s/systems", url.PathEscape(workspaceID))
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSystem sends GET /workspaces/{workspace_id}/systems/{system_id}.
func (c *NecoClient) GetSystem(workspaceID, systemID string) (*api.SystemResponse, error) {
	var result api.SystemResponse
	path := fmt.Sprintf("/workspaces/%s/systems/%s", url.PathEscape(workspaceID), url.PathEscape(systemID))
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ActivateSystem sends POST /workspaces/{workspace_id}/systems/{system_id}/activate.
func (c *NecoClient) ActivateSystem(workspaceID, systemID string) (*api.SystemResponse, error) {
	var result api.SystemResponse
	path := fmt.Sprintf("/workspaces/%s/systems/%s/activate", url.PathEscape(workspaceID), url.PathEscape(systemID))
	if err := c.do(http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateExecution sends POST /executions.
func (c *NecoClient) CreateExecution(req api.CreateExecutionRequest) (*api.ExecutionResponse, error) {
	var result api.ExecutionResponse
	if err := c.do(http.MethodPost, "/executions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartExecution sends POST /executions/{id} to dispatch an execution.
func (c *NecoClient) StartExecution(id string) (*api.StartExecutionResponse, error) {
	var result api.StartExecutionResponse
	if err := c.do(http.MethodPost, "/executions/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetExecution sends GET /executions/{id} to retrieve execution details.
func (c *NecoClient) GetExecution(id string) (*api.ExecutionResponse, error) {
	var result api.ExecutionResponse
	if err := c.do(http.MethodGet, "/executions/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListExecutions sends GET /executions?system_id=.
func (c *NecoClient) ListExecutions(systemID string) (*api.ExecutionListResponse, error) {
	var result api.ExecutionListResponse
	if err := c.do(http.MethodGet, "/executions?system_id="+url.QueryEscape(systemID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
