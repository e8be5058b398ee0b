package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"neco/internal/service"
	"neco/internal/store"
	"neco/pkg/api"
)

// CreateWorkspace handles POST /workspaces.
func (h *Handlers) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req api.CreateWorkspaceRequest
	if !h.decode(w, r, &req) {
		return
	}

	ws, err := h.workspaces.CreateWorkspace(r.Context(), req.Name, req.Description, callerID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusCreated, toWorkspace(ws))
}

// ListWorkspaces handles GET /workspaces?page=&per_page=.
func (h *Handlers) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	page, ok := h.queryInt(w, r, "page", api.DefaultPage)
	if !ok {
		return
	}
	perPage, ok := h.queryInt(w, r, "per_page", api.DefaultPerPage)
	if !ok {
		return
	}
	// Values below 1 are rejected by the service; large pages are clamped.
	perPage = min(perPage, api.MaxPerPage)

	items, total, err := h.workspaces.ListWorkspaces(r.Context(), callerID, page, perPage)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.WorkspaceListResponse{
		Workspaces: toWorkspaces(items),
		Total:      total,
		Page:       &page,
		PerPage:    &perPage,
	})
}

// SearchWorkspaces handles POST /workspaces/search.
func (h *Handlers) SearchWorkspaces(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req api.SearchWorkspaceRequest
	if !h.decode(w, r, &req) {
		return
	}

	params := service.SearchParams{
		Name:      deref(req.Name),
		Status:    deref(req.Status),
		SortField: deref(req.Sorting),
		SortOrder: strings.ToLower(deref(req.Order)),
		Page:      req.Page,
		PerPage:   req.PerPage,
	}
	if params.SortOrder != "" && params.SortOrder != "asc" && params.SortOrder != "desc" {
		h.httpError(w, "order must be asc or desc", http.StatusBadRequest)
		return
	}

	items, total, err := h.workspaces.SearchWorkspaces(r.Context(), callerID, params)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	resp := api.WorkspaceListResponse{Workspaces: toWorkspaces(items), Total: total}
	if req.Page != 0 {
		resp.Page, resp.PerPage = &req.Page, &req.PerPage
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetWorkspace handles GET /workspaces/{id}.
func (h *Handlers) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "workspace")
	if !ok {
		return
	}

	ws, err := h.workspaces.GetWorkspace(r.Context(), id, callerID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, toWorkspace(ws))
}

// UpdateWorkspace handles PATCH /workspaces/{id}.
func (h *Handlers) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "workspace")
	if !ok {
		return
	}

	var req api.UpdateWorkspaceRequest
	if !h.decode(w, r, &req) {
		return
	}

	ws, err := h.workspaces.UpdateWorkspace(r.Context(), id, callerID, store.WorkspacePatch{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, toWorkspace(ws))
}

// DeleteWorkspace handles DELETE /workspaces/{id}.
func (h *Handlers) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "workspace")
	if !ok {
		return
	}

	if err := h.workspaces.DeleteWorkspace(r.Context(), id, callerID); err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.MessageResponse{Message: "workspace deleted"})
}

func (h *Handlers) queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		h.httpError(w, name+" must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
