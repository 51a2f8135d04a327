// internal/service/overlay/renderer.go

package overlay

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/s2"
	"github.com/google/uuid"

	"orcast/internal/domain/forecast"
	"orcast/internal/domain/overlay"
)

// RendererConfig contains configuration for the layer renderer
type RendererConfig struct {
	Mode            overlay.Mode
	MinRadiusMeters float64
	MaxRadiusMeters float64
	MinOpacity      float64
	MaxOpacity      float64
}

// LayerRenderer implements the overlay.Renderer interface. It owns the single
// overlay layer; every commit is tagged with the generation that produced it
// and only the previous generation's overlays are removed.
type LayerRenderer struct {
	config RendererConfig
	mu     sync.RWMutex
	layer  overlay.Layer
	now    func() time.Time

	// status and error of the last commit, restored by ClearLoading
	loading         uint64
	committedStatus overlay.Status
	committedError  string
}

// NewLayerRenderer creates a renderer with an empty idle layer
func NewLayerRenderer(config RendererConfig) *LayerRenderer {
	if config.Mode == "" {
		config.Mode = overlay.ModeCircles
	}

	return &LayerRenderer{
		config: config,
		layer: overlay.Layer{
			Mode:     config.Mode,
			Source:   overlay.SourceNone,
			Status:   overlay.StatusIdle,
			Overlays: []overlay.Overlay{},
		},
		now:             time.Now,
		committedStatus: overlay.StatusIdle,
	}
}

// SetMode changes the primitive used by subsequent renders
func (r *LayerRenderer) SetMode(mode overlay.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config.Mode = mode
}

// Mode returns the primitive used by the next render
func (r *LayerRenderer) Mode() overlay.Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.config.Mode
}

// MarkLoading flags the layer as loading for a newer generation. Overlays
// stay on the map until that generation commits.
func (r *LayerRenderer) MarkLoading(generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if generation <= r.layer.Generation {
		return
	}
	r.loading = generation
	r.layer.Status = overlay.StatusLoading
	r.layer.Error = ""
}

// ClearLoading restores the committed status when the loading generation was
// abandoned. Later generations keep their loading state.
func (r *LayerRenderer) ClearLoading(generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loading != generation {
		return
	}
	r.loading = 0
	r.layer.Status = r.committedStatus
	r.layer.Error = r.committedError
}

// Current returns a copy of the committed layer
func (r *LayerRenderer) Current() overlay.Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyLayer(r.layer)
}

// Render filters the input points, paints them and commits the new layer
func (r *LayerRenderer) Render(in overlay.RenderInput) (*overlay.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if in.Generation <= r.layer.Generation {
		return nil, fmt.Errorf("%w: got %d, current %d", overlay.ErrStaleGeneration, in.Generation, r.layer.Generation)
	}

	now := r.now()
	filter := in.Filter.Normalize()
	kept := Apply(in.Points, filter, now)

	overlays := make([]overlay.Overlay, 0, len(kept))
	for _, p := range kept {
		overlays = append(overlays, r.paint(p, in.Generation))
	}

	previous := r.layer
	removed := make([]string, 0, len(previous.Overlays))
	for _, o := range previous.Overlays {
		if o.Generation == previous.Generation {
			removed = append(removed, o.ID)
		}
	}

	status := in.Status
	if status == "" {
		status = overlay.StatusOK
	}
	r.committedStatus = status
	r.committedError = in.Error
	if r.loading <= in.Generation {
		r.loading = 0
	}

	r.layer = overlay.Layer{
		Generation: in.Generation,
		Mode:       r.config.Mode,
		Source:     in.Source,
		Status:     status,
		Error:      in.Error,
		Query:      in.Query,
		Filter:     filter,
		Overlays:   overlays,
		Bounds:     boundsOf(kept),
		RenderedAt: now,
	}

	return &overlay.Commit{
		Layer:             copyLayer(r.layer),
		RemovedGeneration: previous.Generation,
		RemovedOverlayIDs: removed,
	}, nil
}

func (r *LayerRenderer) paint(p forecast.PredictionPoint, generation uint64) overlay.Overlay {
	bucket := BucketFor(p.Probability)

	o := overlay.Overlay{
		ID:         uuid.New().String(),
		Generation: generation,
		Lat:        p.Lat,
		Lng:        p.Lng,
		Bucket:     bucket.Label,
		Color:      bucket.Color,
		Info:       infoText(p, bucket),
	}

	switch r.config.Mode {
	case overlay.ModeHeatmap:
		o.Kind = overlay.KindHeatmap
		o.Weight = p.Probability
	case overlay.ModeMarkers:
		o.Kind = overlay.KindMarker
		o.Opacity = scale(p.Probability, r.config.MinOpacity, r.config.MaxOpacity)
	default:
		o.Kind = overlay.KindCircle
		o.RadiusMeters = scale(p.Probability, r.config.MinRadiusMeters, r.config.MaxRadiusMeters)
		o.Opacity = scale(p.Probability, r.config.MinOpacity, r.config.MaxOpacity)
	}

	return o
}

func infoText(p forecast.PredictionPoint, bucket overlay.Bucket) string {
	return fmt.Sprintf("%s (%d%%) · %s · confidence %d%% · %s",
		bucket.Label,
		int(math.Round(p.Probability*100)),
		p.Behavior,
		int(math.Round(p.Confidence*100)),
		p.Timestamp.UTC().Format("2006-01-02 15:04 MST"),
	)
}

func boundsOf(points []forecast.PredictionPoint) *overlay.Bounds {
	if len(points) == 0 {
		return nil
	}

	rect := s2.EmptyRect()
	for _, p := range points {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}

	lo, hi := rect.Lo(), rect.Hi()
	return &overlay.Bounds{
		North: hi.Lat.Degrees(),
		South: lo.Lat.Degrees(),
		East:  hi.Lng.Degrees(),
		West:  lo.Lng.Degrees(),
	}
}

func copyLayer(l overlay.Layer) overlay.Layer {
	out := l
	out.Overlays = make([]overlay.Overlay, len(l.Overlays))
	copy(out.Overlays, l.Overlays)
	if l.Bounds != nil {
		b := *l.Bounds
		out.Bounds = &b
	}
	if l.Filter.BehaviorFocus != nil {
		f := *l.Filter.BehaviorFocus
		out.Filter.BehaviorFocus = &f
	}
	return out
}
