// internal/domain/forecast/model.go

package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Behavior is the primary orca behavior predicted for a point
type Behavior string

const (
	BehaviorFeeding     Behavior = "feeding"
	BehaviorTraveling   Behavior = "traveling"
	BehaviorSocializing Behavior = "socializing"
	BehaviorUnknown     Behavior = "unknown"
)

// ParseBehavior maps a backend label onto a known behavior. Labels the
// backend invents later fall back to unknown.
func ParseBehavior(s string) Behavior {
	switch Behavior(strings.ToLower(strings.TrimSpace(s))) {
	case BehaviorFeeding, "foraging":
		return BehaviorFeeding
	case BehaviorTraveling, "travelling":
		return BehaviorTraveling
	case BehaviorSocializing, "socialising":
		return BehaviorSocializing
	default:
		return BehaviorUnknown
	}
}

// Valid reports whether b is one of the declared behaviors
func (b Behavior) Valid() bool {
	switch b {
	case BehaviorFeeding, BehaviorTraveling, BehaviorSocializing, BehaviorUnknown:
		return true
	}
	return false
}

// PredictionPoint is a single geolocated whale presence estimate
type PredictionPoint struct {
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Probability float64   `json:"probability"`
	Behavior    Behavior  `json:"behavior"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
}

// Query is the area a forecast is requested for
type Query struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radius_km"`
}

// ErrInvalidQuery is returned for coordinates or radii outside their ranges
var ErrInvalidQuery = errors.New("invalid forecast query")

// Validate checks coordinate and radius ranges
func (q Query) Validate(maxRadiusKm float64) error {
	if q.Lat < -90 || q.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidQuery, q.Lat)
	}
	if q.Lng < -180 || q.Lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidQuery, q.Lng)
	}
	if q.RadiusKm <= 0 || (maxRadiusKm > 0 && q.RadiusKm > maxRadiusKm) {
		return fmt.Errorf("%w: radius %.1f km out of range", ErrInvalidQuery, q.RadiusKm)
	}
	return nil
}

// FilterState is the user-controlled view over fetched points
type FilterState struct {
	MinConfidence   int       `json:"min_confidence"`
	MaxAgeHours     int       `json:"max_age_hours"`
	BehaviorFocus   *Behavior `json:"behavior_focus,omitempty"`
	TimeOffsetHours int       `json:"time_offset_hours"`
}

// Time slider limits in hours relative to now
const (
	MinTimeOffsetHours = -72
	MaxTimeOffsetHours = 72
)

// Normalize clamps every field into its declared range
func (f FilterState) Normalize() FilterState {
	f.MinConfidence = clampInt(f.MinConfidence, 0, 100)
	if f.MaxAgeHours < 0 {
		f.MaxAgeHours = 0
	}
	f.TimeOffsetHours = clampInt(f.TimeOffsetHours, MinTimeOffsetHours, MaxTimeOffsetHours)
	if f.BehaviorFocus != nil && !f.BehaviorFocus.Valid() {
		f.BehaviorFocus = nil
	}
	return f
}

// ReferenceTime is the instant ages are measured from
func (f FilterState) ReferenceTime(now time.Time) time.Time {
	return now.Add(time.Duration(f.TimeOffsetHours) * time.Hour)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
