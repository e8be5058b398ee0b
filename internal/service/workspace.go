package service

import (
	"context"
	"strings"

	"neco/internal/store"

	"github.com/google/uuid"
)

// WorkspaceService owns the workspace lifecycle.
type WorkspaceService struct {
	workspaces store.WorkspaceStore
}

func NewWorkspaceService(workspaces store.WorkspaceStore) *WorkspaceService {
	return &WorkspaceService{workspaces: workspaces}
}

// SearchParams filters a workspace search. Page and PerPage are optional;
// leave both zero to return every match.
type SearchParams struct {
	Name      string
	Status    string
	SortField string
	SortOrder string
	Page      int
	PerPage   int
}

func (s *WorkspaceService) CreateWorkspace(ctx context.Context, name string, description *string, ownerID uuid.UUID) (*store.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, BadRequest("name is required")
	}

	ws := &store.Workspace{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Status:      store.WorkspaceStatusActive,
		UserID:      ownerID,
	}
	if err := s.workspaces.CreateWorkspace(ctx, ws); err != nil {
		return nil, storeFailure(err)
	}
	return ws, nil
}

func (s *WorkspaceService) GetWorkspace(ctx context.Context, id, callerID uuid.UUID) (*store.Workspace, error) {
	return s.ownedWorkspace(ctx, id, callerID)
}

// ListWorkspaces returns one page of the caller's workspaces and the total
// number the caller owns.
func (s *WorkspaceService) ListWorkspaces(ctx context.Context, callerID uuid.UUID, page, perPage int) ([]store.Workspace, int, error) {
	if page < 1 || perPage < 1 {
		return nil, 0, BadRequest("page and per_page must be >= 1")
	}

	items, total, err := s.workspaces.ListWorkspacesByUser(ctx, callerID, (page-1)*perPage, perPage)
	if err != nil {
		return nil, 0, storeFailure(err)
	}
	return items, total, nil
}

func (s *WorkspaceService) SearchWorkspaces(ctx context.Context, callerID uuid.UUID, params SearchParams) ([]store.Workspace, int, error) {
	search := store.WorkspaceSearch{
		UserID:    callerID,
		Name:      params.Name,
		Status:    params.Status,
		SortField: params.SortField,
		SortOrder: params.SortOrder,
	}

	if params.Page != 0 || params.PerPage != 0 {
		if params.Page < 1 || params.PerPage < 1 {
			return nil, 0, BadRequest("page and per_page must be >= 1")
		}
		search.Offset = (params.Page - 1) * params.PerPage
		search.Limit = params.PerPage
	}

	items, total, err := s.workspaces.SearchWorkspaces(ctx, search)
	if err != nil {
		return nil, 0, storeFailure(err)
	}
	return items, total, nil
}

// UpdateWorkspace applies patch to a workspace the caller owns. Ownership
// cannot be changed.
func (s *WorkspaceService) UpdateWorkspace(ctx context.Context, id, callerID uuid.UUID, patch store.WorkspacePatch) (*store.Workspace, error) {
	if _, err := s.ownedWorkspace(ctx, id, callerID); err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, BadRequest("name must not be empty")
	}

	ws, err := s.workspaces.UpdateWorkspace(ctx, id, patch)
	if err != nil {
		return nil, storeFailure(err)
	}
	if ws == nil {
		return nil, NotFound("workspace not found")
	}
	return ws, nil
}

func (s *WorkspaceService) DeleteWorkspace(ctx context.Context, id, callerID uuid.UUID) error {
	if _, err := s.ownedWorkspace(ctx, id, callerID); err != nil {
		return err
	}

	deleted, err := s.workspaces.DeleteWorkspace(ctx, id)
	if err != nil {
		return storeFailure(err)
	}
	if deleted == nil {
		return NotFound("workspace not found")
	}
	return nil
}

func (s *WorkspaceService) ownedWorkspace(ctx context.Context, id, callerID uuid.UUID) (*store.Workspace, error) {
	ws, err := s.workspaces.GetWorkspaceByID(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if err := AssertOwner(ws, callerID, "workspace"); err != nil {
		return nil, err
	}
	return ws, nil
}
