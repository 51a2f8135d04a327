// internal/service/forecast/coordinator.go

package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"orcast/internal/domain/forecast"
	"orcast/internal/domain/lifecycle"
	"orcast/internal/domain/overlay"
)

// ErrNoData is returned by Rerender before the first fetch
var ErrNoData = errors.New("no forecast has been fetched yet")

// CoordinatorConfig contains configuration for the fetch coordinator
type CoordinatorConfig struct {
	MaxRadiusKm float64
}

// Coordinator runs the fetch → filter → redraw loop. Every request gets a
// sequence number; issuing a request cancels the one in flight and only the
// latest issued request may commit its result.
type Coordinator struct {
	fetcher  forecast.Fetcher
	renderer overlay.Renderer
	history  overlay.HistoryStore
	eventBus lifecycle.Bus
	logger   *zap.Logger
	config   CoordinatorConfig
	now      func() time.Time

	mu            sync.Mutex
	seq           uint64
	latestFetch   uint64
	cancel        context.CancelFunc
	filter        forecast.FilterState
	filterVersion uint64
	query         *forecast.Query
	points        []forecast.PredictionPoint
	pointsQuery   *forecast.Query
	source        overlay.Source
	lastErr       string
}

// NewCoordinator creates a new fetch coordinator
func NewCoordinator(
	fetcher forecast.Fetcher,
	renderer overlay.Renderer,
	history overlay.HistoryStore,
	eventBus lifecycle.Bus,
	logger *zap.Logger,
	config CoordinatorConfig,
) *Coordinator {
	return &Coordinator{
		fetcher:  fetcher,
		renderer: renderer,
		history:  history,
		eventBus: eventBus,
		logger:   logger,
		config:   config,
		now:      time.Now,
		source:   overlay.SourceNone,
	}
}

// Filter returns the filter applied by the next render
func (c *Coordinator) Filter() forecast.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.filter
}

// SetFilter stores a normalized filter for subsequent renders
func (c *Coordinator) SetFilter(f forecast.FilterState) forecast.FilterState {
	return c.UpdateFilter(func(forecast.FilterState) forecast.FilterState { return f })
}

// UpdateFilter replaces the filter with fn(current) in one step, so
// concurrent updates of different fields do not overwrite each other
func (c *Coordinator) UpdateFilter(fn func(forecast.FilterState) forecast.FilterState) forecast.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filter = fn(c.filter).Normalize()
	c.filterVersion++
	return c.filter
}

// LastQuery returns the query of the most recent fetch, if any
func (c *Coordinator) LastQuery() (forecast.Query, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.query == nil {
		return forecast.Query{}, false
	}
	return *c.query, true
}

// Refresh fetches the query and commits the rendered layer. It returns
// forecast.ErrSuperseded when a newer request was issued before this one
// finished, and the caller's context error when the caller gave up first;
// in both cases nothing is committed.
func (c *Coordinator) Refresh(ctx context.Context, q forecast.Query) (*overlay.Commit, error) {
	if err := q.Validate(c.config.MaxRadiusKm); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	c.latestFetch = seq
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	qCopy := q
	c.query = &qCopy
	startVersion := c.filterVersion
	c.mu.Unlock()
	defer cancel()

	c.renderer.MarkLoading(seq)
	c.publish(lifecycle.Event{Type: lifecycle.FetchStarted, Seq: seq, Query: &qCopy})

	points, fetchErr := c.fetcher.Fetch(fetchCtx, q)

	c.mu.Lock()
	if seq != c.latestFetch {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded forecast", zap.Uint64("seq", seq))
		c.publish(lifecycle.Event{Type: lifecycle.FetchSuperseded, Seq: seq, Query: &qCopy})
		return nil, forecast.ErrSuperseded
	}

	if fetchErr != nil && ctx.Err() != nil {
		c.cancel = nil
		c.mu.Unlock()
		c.renderer.ClearLoading(seq)
		c.logger.Debug("forecast request cancelled by caller", zap.Uint64("seq", seq), zap.Error(ctx.Err()))
		c.publish(lifecycle.Event{Type: lifecycle.FetchCancelled, Seq: seq, Query: &qCopy})
		c.rerenderIfFilterChanged(ctx, startVersion)
		return nil, ctx.Err()
	}

	source := overlay.SourceLive
	status := overlay.StatusOK
	errText := ""
	if fetchErr != nil {
		c.logger.Warn("forecast fetch failed, drawing sample data",
			zap.Uint64("seq", seq),
			zap.String("kind", string(forecast.KindOf(fetchErr))),
			zap.Error(fetchErr),
		)
		points = SamplePoints(c.now())
		source = overlay.SourceSample
		status = overlay.StatusError
		errText = fetchErr.Error()
	}
	c.points = points
	c.pointsQuery = &qCopy
	c.source = source
	c.lastErr = errText
	filter := c.filter
	version := c.filterVersion
	c.mu.Unlock()

	if fetchErr != nil {
		c.publish(lifecycle.Event{Type: lifecycle.FetchFailed, Seq: seq, Query: &qCopy, Error: errText})
	} else {
		c.publish(lifecycle.Event{Type: lifecycle.FetchSucceeded, Seq: seq, Query: &qCopy, Count: len(points)})
	}

	commit, err := c.commit(ctx, overlay.RenderInput{
		Generation: seq,
		Points:     points,
		Filter:     filter,
		Query:      q,
		Source:     source,
		Status:     status,
		Error:      errText,
	})

	// Rerenders stay deferred until the commit has landed.
	c.mu.Lock()
	if seq == c.latestFetch {
		c.cancel = nil
	}
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if latest := c.rerenderIfFilterChanged(ctx, version); latest != nil {
		return latest, nil
	}
	return commit, nil
}

// Rerender repaints the cached points with the current filter without a
// fetch. It returns (nil, nil) when a fetch is in flight, since that fetch
// renders with the current filter when it lands, and ErrNoData when nothing
// was fetched yet.
func (c *Coordinator) Rerender(ctx context.Context) (*overlay.Commit, error) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil, nil
	}
	if c.pointsQuery == nil {
		c.mu.Unlock()
		return nil, ErrNoData
	}
	c.seq++
	in := overlay.RenderInput{
		Generation: c.seq,
		Points:     c.points,
		Filter:     c.filter,
		Query:      *c.pointsQuery,
		Source:     c.source,
		Status:     overlay.StatusOK,
		Error:      c.lastErr,
	}
	if c.lastErr != "" {
		in.Status = overlay.StatusError
	}
	c.mu.Unlock()

	return c.commit(ctx, in)
}

// rerenderIfFilterChanged repaints when the filter moved past version while
// a fetch was in flight. A nil result means nothing was repainted.
func (c *Coordinator) rerenderIfFilterChanged(ctx context.Context, version uint64) *overlay.Commit {
	c.mu.Lock()
	changed := c.filterVersion != version
	c.mu.Unlock()
	if !changed {
		return nil
	}

	commit, err := c.Rerender(context.WithoutCancel(ctx))
	if err != nil && !errors.Is(err, ErrNoData) && !errors.Is(err, forecast.ErrSuperseded) {
		c.logger.Warn("failed to repaint with updated filter", zap.Error(err))
	}
	return commit
}

func (c *Coordinator) commit(ctx context.Context, in overlay.RenderInput) (*overlay.Commit, error) {
	commit, err := c.renderer.Render(in)
	if err != nil {
		if errors.Is(err, overlay.ErrStaleGeneration) {
			c.publish(lifecycle.Event{Type: lifecycle.FetchSuperseded, Seq: in.Generation, Query: &in.Query})
			return nil, forecast.ErrSuperseded
		}
		return nil, fmt.Errorf("failed to render layer: %w", err)
	}

	if err := c.history.Record(ctx, commit.Layer.Record()); err != nil {
		c.logger.Warn("failed to record render history", zap.Uint64("generation", in.Generation), zap.Error(err))
	}

	c.publish(lifecycle.Event{
		Type:       lifecycle.RenderCommitted,
		Generation: commit.Layer.Generation,
		Query:      &in.Query,
		Count:      len(commit.Layer.Overlays),
		Source:     string(commit.Layer.Source),
		Error:      commit.Layer.Error,
	})

	return commit, nil
}

func (c *Coordinator) publish(e lifecycle.Event) {
	if e.At.IsZero() {
		e.At = c.now()
	}
	if err := c.eventBus.Publish(context.Background(), e); err != nil {
		c.logger.Warn("failed to publish lifecycle event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
