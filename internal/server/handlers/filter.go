// internal/server/handlers/filter.go

package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"orcast/internal/service/controls"
)

// FilterHandler exposes the time/filter controls
type FilterHandler struct {
	controls Controller
	logger   *zap.Logger
}

// NewFilterHandler creates a new filter handler
func NewFilterHandler(c Controller, logger *zap.Logger) *FilterHandler {
	return &FilterHandler{
		controls: c,
		logger:   logger,
	}
}

// GetFilter returns the current filter state
func (h *FilterHandler) GetFilter(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.controls.State())
}

// ApplyAction applies one control action and returns the redrawn layer
func (h *FilterHandler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	var action controls.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	layer, err := h.controls.Apply(r.Context(), action)
	if err != nil {
		code := statusForError(err)
		if code >= 500 {
			h.logger.Error("control action failed", zap.String("action", string(action.Type)), zap.Error(err))
		}
		respondWithError(w, code, err.Error(), err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"filter": h.controls.State(),
		"layer":  layer,
	})
}
