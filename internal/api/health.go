package api

import (
	"net/http"
	"time"

	"github.com/diaria/diaria-assistant/internal/api/respond"
)

// HealthHandler reports aggregated service health.
type HealthHandler struct {
	isHealthy func() bool
}

// NewHealthHandler wires the health flag source, typically
// health.ServiceHealthChecker.IsHealthy. A nil source reports healthy.
func NewHealthHandler(isHealthy func() bool) *HealthHandler {
	if isHealthy == nil {
		isHealthy = func() bool { return true }
	}
	return &HealthHandler{isHealthy: isHealthy}
}

// CheckHealth handles GET /api/health. Always 200; the body reports
// healthy/unhealthy so load balancers and humans read the same signal.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if h.isHealthy() {
		status = "healthy"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
