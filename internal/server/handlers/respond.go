// internal/server/handlers/respond.go

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"orcast/internal/domain/forecast"
	"orcast/internal/domain/overlay"
	"orcast/internal/service/controls"
)

// Controller applies UI actions to the forecast pipeline
type Controller interface {
	State() forecast.FilterState
	Apply(ctx context.Context, a controls.Action) (overlay.Layer, error)
}

// LayerSource exposes the layer currently on the map
type LayerSource interface {
	Current() overlay.Layer
}

// statusForError maps pipeline errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, forecast.ErrInvalidQuery), errors.Is(err, controls.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseFloatParam reads an optional float query parameter
func parseFloatParam(r *http.Request, name string, fallback float64) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses. Server errors carry the underlying message.
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	response := map[string]string{"error": message}
	if err != nil && code >= 500 {
		response["detail"] = err.Error()
	}

	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}
