// internal/domain/lifecycle/event.go

package lifecycle

import (
	"context"
	"time"

	"orcast/internal/domain/forecast"
)

// EventType names a step of the fetch/render loop
type EventType string

const (
	FetchStarted    EventType = "forecast.started"
	FetchSucceeded  EventType = "forecast.succeeded"
	FetchFailed     EventType = "forecast.failed"
	FetchSuperseded EventType = "forecast.superseded"
	FetchCancelled  EventType = "forecast.cancelled"
	RenderCommitted EventType = "render.committed"
	HealthChanged   EventType = "health.changed"
)

// Event is published for every lifecycle step
type Event struct {
	Type       EventType       `json:"type"`
	Seq        uint64          `json:"seq,omitempty"`
	Generation uint64          `json:"generation,omitempty"`
	Query      *forecast.Query `json:"query,omitempty"`
	Count      int             `json:"count,omitempty"`
	Source     string          `json:"source,omitempty"`
	Service    string          `json:"service,omitempty"`
	State      string          `json:"state,omitempty"`
	Error      string          `json:"error,omitempty"`
	At         time.Time       `json:"at"`
}

// Handler receives events from a subscription
type Handler func(Event)

// Bus carries lifecycle events between the pipeline and its observers
type Bus interface {
	// Publish delivers an event to every subscriber
	Publish(ctx context.Context, e Event) error

	// Subscribe registers a handler for all events and returns a cancel func
	Subscribe(handler Handler) (func(), error)
}
