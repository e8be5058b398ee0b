package handlers

import (
	"context"
	"net/http"
	"time"

	"neco/internal/logger"
)

// Healthz is a liveness probe.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJson(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Readyz pings every dependency and reports the ones that failed.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	ready := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			logger.FromContext(ctx, h.log).Warn("readiness check failed", "dependency", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		status["status"] = "not ready"
		h.respondJson(w, http.StatusServiceUnavailable, status)
		return
	}
	status["status"] = "ready"
	h.respondJson(w, http.StatusOK, status)
}
