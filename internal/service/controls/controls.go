// internal/service/controls/controls.go

package controls

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"orcast/internal/domain/forecast"
	"orcast/internal/domain/overlay"
	forecastService "orcast/internal/service/forecast"
)

// ActionType names a discrete UI control
type ActionType string

const (
	SetMinConfidence   ActionType = "set_min_confidence"
	SetMaxAge          ActionType = "set_max_age"
	SetBehaviorFocus   ActionType = "set_behavior_focus"
	ClearBehaviorFocus ActionType = "clear_behavior_focus"
	SetTimeOffset      ActionType = "set_time_offset"
	StepTime           ActionType = "step_time"
	SetQuery           ActionType = "set_query"
	SetMode            ActionType = "set_mode"
	Refresh            ActionType = "refresh"
)

// Action is one slider move or button press
type Action struct {
	Type     ActionType      `json:"type"`
	Value    int             `json:"value,omitempty"`
	Behavior string          `json:"behavior,omitempty"`
	Query    *forecast.Query `json:"query,omitempty"`
	Mode     string          `json:"mode,omitempty"`
}

// ErrUnknownAction is returned for unrecognized action types
var ErrUnknownAction = errors.New("unknown control action")

// Pipeline is the fetch/render loop the controls drive
type Pipeline interface {
	Filter() forecast.FilterState
	UpdateFilter(fn func(forecast.FilterState) forecast.FilterState) forecast.FilterState
	LastQuery() (forecast.Query, bool)
	Refresh(ctx context.Context, q forecast.Query) (*overlay.Commit, error)
	Rerender(ctx context.Context) (*overlay.Commit, error)
}

// Config contains configuration for the controls
type Config struct {
	DefaultQuery forecast.Query

	// RefetchOnFilterChange refetches on every filter action instead of
	// repainting the cached points.
	RefetchOnFilterChange bool
}

// Controls maps UI actions to filter state and runs the pipeline
type Controls struct {
	pipeline Pipeline
	renderer overlay.Renderer
	config   Config
	logger   *zap.Logger
}

// NewControls creates the control set
func NewControls(pipeline Pipeline, renderer overlay.Renderer, logger *zap.Logger, config Config) *Controls {
	return &Controls{
		pipeline: pipeline,
		renderer: renderer,
		config:   config,
		logger:   logger,
	}
}

// State returns the current filter
func (c *Controls) State() forecast.FilterState {
	return c.pipeline.Filter()
}

// Apply updates the filter for a, then fetches and/or repaints synchronously
// and returns the resulting layer.
func (c *Controls) Apply(ctx context.Context, a Action) (overlay.Layer, error) {
	// mutate runs under the pipeline's filter lock, so concurrent actions
	// each see the other's result
	var mutate func(f forecast.FilterState) forecast.FilterState

	switch a.Type {
	case SetMinConfidence:
		mutate = func(f forecast.FilterState) forecast.FilterState {
			f.MinConfidence = a.Value
			return f
		}
	case SetMaxAge:
		mutate = func(f forecast.FilterState) forecast.FilterState {
			f.MaxAgeHours = a.Value
			return f
		}
	case SetBehaviorFocus:
		b := forecast.ParseBehavior(a.Behavior)
		if b == forecast.BehaviorUnknown && a.Behavior != string(forecast.BehaviorUnknown) {
			return overlay.Layer{}, fmt.Errorf("%w: unsupported behavior %q", ErrUnknownAction, a.Behavior)
		}
		mutate = func(f forecast.FilterState) forecast.FilterState {
			f.BehaviorFocus = &b
			return f
		}
	case ClearBehaviorFocus:
		mutate = func(f forecast.FilterState) forecast.FilterState {
			f.BehaviorFocus = nil
			return f
		}
	case SetTimeOffset:
		mutate = func(f forecast.FilterState) forecast.FilterState {
			f.TimeOffsetHours = a.Value
			return f
		}
	case StepTime:
		mutate = func(f forecast.FilterState) forecast.FilterState {
			f.TimeOffsetHours += a.Value
			return f
		}
	case SetQuery:
		if a.Query == nil {
			return overlay.Layer{}, fmt.Errorf("%w: set_query needs a query", forecast.ErrInvalidQuery)
		}
		return c.refresh(ctx, *a.Query)
	case SetMode:
		c.renderer.SetMode(overlay.ParseMode(a.Mode))
		return c.repaint(ctx)
	case Refresh:
		return c.refresh(ctx, c.query())
	default:
		return overlay.Layer{}, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}

	f := c.pipeline.UpdateFilter(mutate)
	c.logger.Debug("filter changed",
		zap.String("action", string(a.Type)),
		zap.Int("min_confidence", f.MinConfidence),
		zap.Int("max_age_hours", f.MaxAgeHours),
		zap.Int("time_offset_hours", f.TimeOffsetHours),
	)

	if c.config.RefetchOnFilterChange {
		return c.refresh(ctx, c.query())
	}
	return c.repaint(ctx)
}

func (c *Controls) query() forecast.Query {
	if q, ok := c.pipeline.LastQuery(); ok {
		return q
	}
	return c.config.DefaultQuery
}

func (c *Controls) refresh(ctx context.Context, q forecast.Query) (overlay.Layer, error) {
	commit, err := c.pipeline.Refresh(ctx, q)
	if err != nil {
		return c.renderer.Current(), err
	}
	return commit.Layer, nil
}

func (c *Controls) repaint(ctx context.Context) (overlay.Layer, error) {
	commit, err := c.pipeline.Rerender(ctx)
	if errors.Is(err, forecastService.ErrNoData) {
		return c.refresh(ctx, c.query())
	}
	if err != nil {
		return c.renderer.Current(), err
	}
	if commit == nil {
		// A fetch is in flight and will paint with the new state.
		return c.renderer.Current(), nil
	}
	return commit.Layer, nil
}
