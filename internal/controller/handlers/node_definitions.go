package handlers

import (
	"net/http"

	"neco/pkg/api"
)

// ListNodeDefinitions handles GET /node-definitions.
func (h *Handlers) ListNodeDefinitions(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	items, total, err := h.nodeDefs.ListNodeDefinitions(r.Context(), callerID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.NodeDefinitionListResponse{
		NodeDefinitions: toNodeDefinitions(items),
		Total:           total,
	})
}

// GetNodeDefinition handles GET /node-definitions/{id}.
func (h *Handlers) GetNodeDefinition(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "node definition")
	if !ok {
		return
	}

	def, err := h.nodeDefs.GetNodeDefinition(r.Context(), id, callerID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, toNodeDefinition(def))
}
