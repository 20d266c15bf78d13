package handlers

import (
	"net/http"

	"github.com/RkayG/Cxperia-sub002/internal/ratelimit"
)

type healthResponse struct {
	Status    string                `json:"status"`
	Timestamp string                `json:"timestamp"`
	Store     ratelimit.StoreHealth `json:"store"`
}

// HealthCheck always answers 200: a degraded store still serves decisions from memory.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	store := h.registry.Health(r.Context())

	status := "healthy"
	if store.Degraded {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: ratelimit.FormatResetTime(h.now()),
		Store:     store,
	})
}

// GetRateLimitStats lists the active limiters and the counter store state.
func (h *Handlers) GetRateLimitStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Stats(r.Context()))
}
