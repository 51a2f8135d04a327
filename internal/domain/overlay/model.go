// internal/domain/overlay/model.go

package overlay

import (
	"time"

	"orcast/internal/domain/forecast"
)

// Kind is the map primitive an overlay is drawn with
type Kind string

const (
	KindCircle  Kind = "circle"
	KindMarker  Kind = "marker"
	KindHeatmap Kind = "heatmap"
)

// Mode selects which primitive the renderer emits
type Mode string

const (
	ModeCircles Mode = "circles"
	ModeMarkers Mode = "markers"
	ModeHeatmap Mode = "heatmap"
)

// ParseMode returns the mode for s, falling back to circles
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeMarkers:
		return ModeMarkers
	case ModeHeatmap:
		return ModeHeatmap
	default:
		return ModeCircles
	}
}

// Source says where a layer's points came from
type Source string

const (
	SourceNone   Source = "none"
	SourceLive   Source = "live"
	SourceSample Source = "sample"
)

// Status drives the page's loading affordance and indicator color
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusOK      Status = "ok"
	StatusError   Status = "error"
)

// Bucket is one band of the probability color table
type Bucket struct {
	Label    string  `json:"label"`
	Color    string  `json:"color"`
	MinValue float64 `json:"min_value"`
}

// Overlay is one drawn map element
type Overlay struct {
	ID           string  `json:"id"`
	Generation   uint64  `json:"generation"`
	Kind         Kind    `json:"kind"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Bucket       string  `json:"bucket"`
	Color        string  `json:"color"`
	RadiusMeters float64 `json:"radius_meters,omitempty"`
	Opacity      float64 `json:"opacity,omitempty"`
	Weight       float64 `json:"weight,omitempty"`
	Info         string  `json:"info"`
}

// Bounds is the lat/lng rectangle enclosing a layer
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Layer is the full overlay set currently on the map
type Layer struct {
	Generation uint64               `json:"generation"`
	Mode       Mode                 `json:"mode"`
	Source     Source               `json:"source"`
	Status     Status               `json:"status"`
	Error      string               `json:"error,omitempty"`
	Query      forecast.Query       `json:"query"`
	Filter     forecast.FilterState `json:"filter"`
	Overlays   []Overlay            `json:"overlays"`
	Bounds     *Bounds              `json:"bounds,omitempty"`
	RenderedAt time.Time            `json:"rendered_at"`
}

// Commit describes the change a render applied to the layer
type Commit struct {
	Layer             Layer    `json:"layer"`
	RemovedGeneration uint64   `json:"removed_generation"`
	RemovedOverlayIDs []string `json:"removed_overlay_ids"`
}

// RenderRecord is a history entry for a committed layer
type RenderRecord struct {
	Generation   uint64               `json:"generation"`
	Source       Source               `json:"source"`
	Status       Status               `json:"status"`
	Error        string               `json:"error,omitempty"`
	Query        forecast.Query       `json:"query"`
	Filter       forecast.FilterState `json:"filter"`
	OverlayCount int                  `json:"overlay_count"`
	RenderedAt   time.Time            `json:"rendered_at"`
}

// Record summarizes a layer for the history
func (l Layer) Record() RenderRecord {
	return RenderRecord{
		Generation:   l.Generation,
		Source:       l.Source,
		Status:       l.Status,
		Error:        l.Error,
		Query:        l.Query,
		Filter:       l.Filter,
		OverlayCount: len(l.Overlays),
		RenderedAt:   l.RenderedAt,
	}
}
