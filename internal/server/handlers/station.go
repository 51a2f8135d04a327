// internal/server/handlers/station.go

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"orcast/internal/domain/station"
)

// StationHandler handles hydrophone station requests
type StationHandler struct {
	registry      station.Registry
	defaultRadius float64
}

// NewStationHandler creates a new station handler
func NewStationHandler(registry station.Registry, defaultRadiusKm float64) *StationHandler {
	return &StationHandler{
		registry:      registry,
		defaultRadius: defaultRadiusKm,
	}
}

// ListStations returns all stations, optionally filtered by ?region=
func (h *StationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.registry.All(r.URL.Query().Get("region")))
}

// GetStation returns a specific station by ID
func (h *StationHandler) GetStation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing station ID", nil)
		return
	}

	s, err := h.registry.Get(id)
	if err != nil {
		if errors.Is(err, station.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Station not found", nil)
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to get station", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, s)
}

// GetNearbyStations returns stations near ?lat=&lng=, nearest first
func (h *StationHandler) GetNearbyStations(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lng") == "" {
		respondWithError(w, http.StatusBadRequest, "Missing location parameters", nil)
		return
	}

	lat, err := parseFloatParam(r, "lat", 0)
	if err != nil || lat < -90 || lat > 90 {
		respondWithError(w, http.StatusBadRequest, "Invalid latitude", err)
		return
	}

	lng, err := parseFloatParam(r, "lng", 0)
	if err != nil || lng < -180 || lng > 180 {
		respondWithError(w, http.StatusBadRequest, "Invalid longitude", err)
		return
	}

	radius, err := parseFloatParam(r, "radius_km", h.defaultRadius)
	if err != nil || radius <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid radius", err)
		return
	}

	respondWithJSON(w, http.StatusOK, h.registry.Nearby(lat, lng, radius))
}
