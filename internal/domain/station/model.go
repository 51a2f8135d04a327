// internal/domain/station/model.go

package station

import (
	"context"
	"errors"
)

// HydrophoneStation is a fixed underwater listening post
type HydrophoneStation struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Region      string  `json:"region"`
	Description string  `json:"description"`
}

// NearbyStation is a station with its distance from a query point
type NearbyStation struct {
	HydrophoneStation
	DistanceKm float64 `json:"distance_km"`
}

// ErrNotFound is returned for unknown station ids
var ErrNotFound = errors.New("station not found")

// Store loads the station list
type Store interface {
	// ListStations returns every known station
	ListStations(ctx context.Context) ([]HydrophoneStation, error)
}

// Registry answers station lookups for the map
type Registry interface {
	// All returns every station, optionally limited to a region
	All(region string) []HydrophoneStation

	// Get returns a station by id
	Get(id string) (HydrophoneStation, error)

	// Nearby returns stations within radiusKm of a point, nearest first
	Nearby(lat, lng, radiusKm float64) []NearbyStation
}
