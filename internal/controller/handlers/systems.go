package handlers

import (
	"net/http"

	"neco/pkg/api"

	"github.com/google/uuid"
)

// CreateSystem handles POST /workspaces/system.
func (h *Handlers) CreateSystem(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req api.CreateSystemRequest
	if !h.decode(w, r, &req) {
		return
	}
	workspaceID, err := uuid.Parse(req.WorkspaceID)
	if err != nil {
		h.httpError(w, "invalid workspace id", http.StatusBadRequest)
		return
	}

	sys, err := h.systems.CreateSystem(r.Context(), req.Name, req.Description, workspaceID, callerID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusCreated, toSystem(sys))
}

// ListSystems handles GET /workspaces/{workspace_id}/systems.
func (h *Handlers) ListSystems(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	workspaceID, ok := h.pathID(w, r, "workspace_id", "workspace")
	if !ok {
		return
	}

	items, total, err := h.systems.ListSystems(r.Context(), workspaceID, callerID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.SystemListResponse{Systems: toSystems(items), Total: total})
}

// GetSystem handles GET /workspaces/{workspace_id}/systems/{system_id}.
func (h *Handlers) GetSystem(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	workspaceID, ok := h.pathID(w, r, "workspace_id", "workspace")
	if !ok {
		return
	}
	systemID, ok := h.pathID(w, r, "system_id", "system")
	if !ok {
		return
	}

	sys, err := h.systems.GetSystem(r.Context(), workspaceID, systemID, callerID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, toSystem(sys))
}

// ActivateSystem handles POST /workspaces/{workspace_id}/systems/{system_id}/activate.
func (h *Handlers) ActivateSystem(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	workspaceID, ok := h.pathID(w, r, "workspace_id", "workspace")
	if !ok {
		return
	}
	systemID, ok := h.pathID(w, r, "system_id", "system")
	if !ok {
		return
	}

	sys, err := h.systems.ActivateSystem(r.Context(), workspaceID, systemID, callerID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusAccepted, toSystem(sys))
}
