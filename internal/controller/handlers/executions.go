package handlers

import (
	"net/http"

	"neco/pkg/api"

	"github.com/google/uuid"
)

// CreateExecution handles POST /executions.
func (h *Handlers) CreateExecution(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req api.CreateExecutionRequest
	if !h.decode(w, r, &req) {
		return
	}
	systemID, err := uuid.Parse(req.SystemID)
	if err != nil {
		h.httpError(w, "invalid system id", http.StatusBadRequest)
		return
	}

	exec, err := h.executions.CreateExecution(r.Context(), callerID, systemID, jsonOrEmpty(req.SystemJSON), req.Status)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusCreated, toExecution(exec))
}

// ListExecutions handles GET /executions?system_id=.
func (h *Handlers) ListExecutions(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	systemID, err := uuid.Parse(r.URL.Query().Get("system_id"))
	if err != nil {
		h.httpError(w, "system_id query parameter is required", http.StatusBadRequest)
		return
	}

	items, total, err := h.executions.ListExecutions(r.Context(), callerID, systemID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.ExecutionListResponse{Executions: toExecutions(items), Total: total})
}

// GetExecution handles GET /executions/{id}.
func (h *Handlers) GetExecution(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "execution")
	if !ok {
		return
	}

	exec, err := h.executions.GetExecution(r.Context(), callerID, id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, toExecution(exec))
}

// StartExecution handles POST /executions/{id}. The dispatch happens in the
// background; progress shows up in the execution log.
func (h *Handlers) StartExecution(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "execution")
	if !ok {
		return
	}

	if err := h.executions.StartExecution(r.Context(), callerID, id); err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusAccepted, api.StartExecutionResponse{
		ID:      id.String(),
		Status:  "running",
		Message: "execution started",
	})
}

// ---------------------------------------------------------
// Internal endpoints, guarded by the shared secret.
// ---------------------------------------------------------

// InternalUpdateResult handles PUT /internal/executions/{id}/result.
// Queue consumers call this when a run finishes.
func (h *Handlers) InternalUpdateResult(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id", "execution")
	if !ok {
		return
	}

	var req api.ExecutionResultRequest
	if !h.decode(w, r, &req) {
		return
	}

	exec, err := h.executions.CompleteExecution(r.Context(), id, req.Succeeded, req.Message)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, toExecution(exec))
}
