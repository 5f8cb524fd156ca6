package handlers

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// HealthHandlers responds to liveness and readiness probes.
type HealthHandlers struct{}

// NewHealthHandlers constructs health handlers.
func NewHealthHandlers() *HealthHandlers {
	return &HealthHandlers{}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports readiness to serve traffic.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ready"})
}
