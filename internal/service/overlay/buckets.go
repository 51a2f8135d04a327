// internal/service/overlay/buckets.go

package overlay

import "orcast/internal/domain/overlay"

// Buckets is the probability color table, highest band first. Each band
// owns every probability at or above its MinValue and below the band above.
var Buckets = []overlay.Bucket{
	{Label: "Very High", Color: "#d73027", MinValue: 0.80},
	{Label: "High", Color: "#fc8d59", MinValue: 0.60},
	{Label: "Moderate", Color: "#fee08b", MinValue: 0.40},
	{Label: "Low", Color: "#d9ef8b", MinValue: 0.20},
	{Label: "Very Low", Color: "#1a9850", MinValue: 0},
}

// BucketFor classifies a probability. Values below zero land in the lowest
// band and values above one in the highest.
func BucketFor(probability float64) overlay.Bucket {
	for _, b := range Buckets {
		if probability >= b.MinValue {
			return b
		}
	}
	return Buckets[len(Buckets)-1]
}

// scale maps probability in [0,1] linearly onto [lo, hi]
func scale(probability, lo, hi float64) float64 {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	return lo + probability*(hi-lo)
}
