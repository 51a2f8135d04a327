// internal/service/overlay/filter.go

package overlay

import (
	"math"
	"time"

	"orcast/internal/domain/forecast"
)

// confidencePercent rounds to 1e-6 so that e.g. 0.57 compares equal to 57
func confidencePercent(confidence float64) float64 {
	return math.Round(confidence*100*1e6) / 1e6
}

// Keep reports whether p survives the filter at reference time ref
func Keep(p forecast.PredictionPoint, f forecast.FilterState, ref time.Time) bool {
	if confidencePercent(p.Confidence) < float64(f.MinConfidence) {
		return false
	}

	if f.MaxAgeHours > 0 && ref.Sub(p.Timestamp) > time.Duration(f.MaxAgeHours)*time.Hour {
		return false
	}

	if f.BehaviorFocus != nil && p.Behavior != *f.BehaviorFocus {
		return false
	}

	return true
}

// Apply returns the points of in that pass the filter, preserving order
func Apply(in []forecast.PredictionPoint, f forecast.FilterState, now time.Time) []forecast.PredictionPoint {
	ref := f.ReferenceTime(now)
	out := make([]forecast.PredictionPoint, 0, len(in))
	for _, p := range in {
		if Keep(p, f, ref) {
			out = append(out, p)
		}
	}
	return out
}
