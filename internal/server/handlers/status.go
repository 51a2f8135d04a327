// internal/server/handlers/status.go

package handlers

import (
	"net/http"

	"orcast/internal/service/health"
)

// HealthSource reports polled service health
type HealthSource interface {
	Status() []health.ServiceStatus
}

// StatusHandler reports service connectivity and layer state
type StatusHandler struct {
	health HealthSource
	layers LayerSource
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(h HealthSource, layers LayerSource) *StatusHandler {
	return &StatusHandler{
		health: h,
		layers: layers,
	}
}

// GetStatus returns per-service health plus the layer's loading state
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	layer := h.layers.Current()

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"services": h.health.Status(),
		"layer": map[string]interface{}{
			"generation": layer.Generation,
			"status":     layer.Status,
			"source":     layer.Source,
			"error":      layer.Error,
			"overlays":   len(layer.Overlays),
		},
	})
}
