// internal/service/station/registry.go

package station

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/golang/geo/s2"

	"orcast/internal/domain/station"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances
const EarthRadiusKm = 6371.0088

// Registry is an immutable, in-memory view of the station list
type Registry struct {
	stations []station.HydrophoneStation
	byID     map[string]int
	points   []s2.LatLng
}

// NewRegistry loads the station list once from store
func NewRegistry(ctx context.Context, store station.Store) (*Registry, error) {
	stations, err := store.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}

	r := &Registry{
		stations: stations,
		byID:     make(map[string]int, len(stations)),
		points:   make([]s2.LatLng, len(stations)),
	}
	for i, st := range stations {
		r.byID[st.ID] = i
		r.points[i] = s2.LatLngFromDegrees(st.Lat, st.Lng)
	}
	return r, nil
}

// All returns every station, or only those in region when region is set
func (r *Registry) All(region string) []station.HydrophoneStation {
	out := make([]station.HydrophoneStation, 0, len(r.stations))
	for _, st := range r.stations {
		if region != "" && !strings.EqualFold(st.Region, region) {
			continue
		}
		out = append(out, st)
	}
	return out
}

// Get returns a station by id
func (r *Registry) Get(id string) (station.HydrophoneStation, error) {
	i, ok := r.byID[id]
	if !ok {
		return station.HydrophoneStation{}, fmt.Errorf("%w: %s", station.ErrNotFound, id)
	}
	return r.stations[i], nil
}

// Nearby returns stations within radiusKm of (lat, lng), nearest first
func (r *Registry) Nearby(lat, lng, radiusKm float64) []station.NearbyStation {
	origin := s2.LatLngFromDegrees(lat, lng)

	var out []station.NearbyStation
	for i, st := range r.stations {
		d := DistanceKm(origin, r.points[i])
		if d <= radiusKm {
			out = append(out, station.NearbyStation{HydrophoneStation: st, DistanceKm: d})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

// DistanceKm is the great-circle distance between two points
func DistanceKm(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * EarthRadiusKm
}
