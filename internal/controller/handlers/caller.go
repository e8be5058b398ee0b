package handlers

import (
	"net/http"

	"neco/internal/controller/middleware"

	"github.com/google/uuid"
)

// callerID returns the authenticated user, writing a 401 if there is none.
func (h *Handlers) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.httpError(w, "unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return caller.ID(), true
}
