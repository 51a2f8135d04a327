// internal/service/forecast/sample.go

package forecast

import (
	"time"

	"orcast/internal/domain/forecast"
)

// SamplePoints is the fallback set drawn when the backend cannot be reached,
// so the map is never blank. The points sit along the Haro Strait corridor
// and are stamped with now so age filters keep them.
func SamplePoints(now time.Time) []forecast.PredictionPoint {
	points := []forecast.PredictionPoint{
		{Lat: 48.5465, Lng: -123.0095, Probability: 0.87, Confidence: 0.92, Behavior: forecast.BehaviorFeeding},
		{Lat: 48.5159, Lng: -123.1523, Probability: 0.72, Confidence: 0.85, Behavior: forecast.BehaviorTraveling},
		{Lat: 48.5583, Lng: -123.1735, Probability: 0.64, Confidence: 0.78, Behavior: forecast.BehaviorSocializing},
		{Lat: 48.4500, Lng: -123.0500, Probability: 0.45, Confidence: 0.66, Behavior: forecast.BehaviorTraveling},
		{Lat: 48.6200, Lng: -123.2100, Probability: 0.28, Confidence: 0.55, Behavior: forecast.BehaviorUnknown},
		{Lat: 48.3900, Lng: -123.2300, Probability: 0.12, Confidence: 0.40, Behavior: forecast.BehaviorUnknown},
	}
	for i := range points {
		points[i].Timestamp = now
	}
	return points
}
