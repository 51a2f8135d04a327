// internal/server/handlers/forecast.go

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"orcast/internal/domain/forecast"
	"orcast/internal/domain/overlay"
	"orcast/internal/service/controls"
	overlayService "orcast/internal/service/overlay"
)

// ForecastHandler handles layer, refresh and history requests
type ForecastHandler struct {
	controls Controller
	layers   LayerSource
	history  overlay.HistoryStore
	logger   *zap.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(c Controller, layers LayerSource, history overlay.HistoryStore, logger *zap.Logger) *ForecastHandler {
	return &ForecastHandler{
		controls: c,
		layers:   layers,
		history:  history,
		logger:   logger,
	}
}

// GetLayer returns the committed overlay layer
func (h *ForecastHandler) GetLayer(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.layers.Current())
}

// Refresh fetches and renders a forecast. An empty body refreshes the last
// query; otherwise the body is the query to fetch.
func (h *ForecastHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	action := controls.Action{Type: controls.Refresh}

	var q forecast.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	} else if err == nil {
		action = controls.Action{Type: controls.SetQuery, Query: &q}
	}

	layer, err := h.controls.Apply(r.Context(), action)
	if err != nil {
		code := statusForError(err)
		if code >= 500 {
			h.logger.Error("forecast refresh failed", zap.Error(err))
		}
		respondWithError(w, code, err.Error(), err)
		return
	}

	respondWithJSON(w, http.StatusOK, layer)
}

// GetHistory returns recent committed layers, newest first
func (h *ForecastHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read render history", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to get history", err)
		return
	}
	if records == nil {
		records = []overlay.RenderRecord{}
	}

	respondWithJSON(w, http.StatusOK, records)
}

// GetBuckets returns the probability color legend
func (h *ForecastHandler) GetBuckets(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, overlayService.Buckets)
}
