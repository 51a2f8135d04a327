// internal/domain/overlay/renderer.go

package overlay

import (
	"context"
	"errors"

	"orcast/internal/domain/forecast"
)

// ErrStaleGeneration is returned when a commit would replace a newer layer
var ErrStaleGeneration = errors.New("overlay generation is older than the current layer")

// RenderInput is everything a redraw needs
type RenderInput struct {
	Generation uint64
	Points     []forecast.PredictionPoint
	Filter     forecast.FilterState
	Query      forecast.Query
	Source     Source
	Status     Status
	Error      string
}

// Renderer turns prediction points into the committed overlay layer
type Renderer interface {
	// Render filters and paints the points and commits the result
	Render(in RenderInput) (*Commit, error)

	// MarkLoading flags the current layer as loading without touching overlays
	MarkLoading(generation uint64)

	// ClearLoading undoes MarkLoading for a generation that will never commit
	ClearLoading(generation uint64)

	// Current returns a copy of the committed layer
	Current() Layer

	// SetMode changes the primitive used by subsequent renders
	SetMode(mode Mode)
}

// HistoryStore keeps committed layer summaries
type HistoryStore interface {
	Record(ctx context.Context, rec RenderRecord) error
	Recent(ctx context.Context, limit int) ([]RenderRecord, error)
}
