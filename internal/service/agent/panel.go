// internal/service/agent/panel.go

package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orcast/internal/adapter/backend"
	"orcast/internal/domain/agent"
	"orcast/internal/domain/lifecycle"
	"orcast/internal/domain/overlay"
	overlayService "orcast/internal/service/overlay"
)

// Agent names shown next to each narration line
const (
	ForecastAgent = "Forecast Agent"
	MapAgent      = "Map Agent"
	HealthAgent   = "Health Agent"
	Assistant     = "Assistant"
	UserAgent     = "You"
)

// ErrEmptyQuestion is returned by Ask for blank input
var ErrEmptyQuestion = errors.New("question is empty")

// LayerSource exposes the layer currently on the map
type LayerSource interface {
	Current() overlay.Layer
}

// PanelConfig contains configuration for the agent panel
type PanelConfig struct {
	MaxMessages int
}

// Panel implements agent.Panel. It only observes the lifecycle bus; nothing
// in the fetch/render loop waits on it.
type Panel struct {
	responder agent.Responder
	layers    LayerSource
	logger    *zap.Logger
	config    PanelConfig
	now       func() time.Time

	mu          sync.RWMutex
	messages    []agent.Message
	watchers    map[int]func(agent.Message)
	nextWatch   int
	unsubscribe func()
}

// NewPanel creates a panel subscribed to eventBus
func NewPanel(
	eventBus lifecycle.Bus,
	responder agent.Responder,
	layers LayerSource,
	logger *zap.Logger,
	config PanelConfig,
) (*Panel, error) {
	if config.MaxMessages < 1 {
		config.MaxMessages = 50
	}

	p := &Panel{
		responder: responder,
		layers:    layers,
		logger:    logger,
		config:    config,
		now:       time.Now,
		messages:  make([]agent.Message, 0, config.MaxMessages),
		watchers:  make(map[int]func(agent.Message)),
	}

	unsubscribe, err := eventBus.Subscribe(p.handleEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe agent panel: %w", err)
	}
	p.unsubscribe = unsubscribe

	return p, nil
}

// Close detaches the panel from the bus
func (p *Panel) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

// Messages returns the retained log, oldest first
func (p *Panel) Messages() []agent.Message {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]agent.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Watch registers fn for every appended message until the returned func is called
func (p *Panel) Watch(fn func(agent.Message)) func() {
	p.mu.Lock()
	id := p.nextWatch
	p.nextWatch++
	p.watchers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}
}

// Ask logs question, forwards it with a summary of the current layer to the
// responder and logs the answer. A responder failure is logged as an error
// line and returned.
func (p *Panel) Ask(ctx context.Context, question string) (agent.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return agent.Message{}, ErrEmptyQuestion
	}

	p.append(UserAgent, question, agent.LevelInfo)

	prompt := fmt.Sprintf(
		"You are the assistant of an orca sighting forecast map for the Salish Sea. "+
			"Answer briefly using the map state below.\n\n%s\n\nQuestion: %s",
		Summarize(p.layers.Current()), question,
	)

	answer, err := p.responder.Answer(ctx, prompt)
	if err != nil {
		p.logger.Warn("assistant failed to answer", zap.Error(err))
		msg := p.append(Assistant, fmt.Sprintf("Sorry, I could not answer that: %v", err), agent.LevelError)
		return msg, fmt.Errorf("failed to answer question: %w", err)
	}

	return p.append(Assistant, answer, agent.LevelInfo), nil
}

func (p *Panel) handleEvent(e lifecycle.Event) {
	name, text, level, ok := narrate(e)
	if !ok {
		return
	}
	p.append(name, text, level)
}

func (p *Panel) append(name, text string, level agent.Level) agent.Message {
	msg := agent.Message{
		ID:    uuid.New().String(),
		Agent: name,
		Text:  text,
		Level: level,
		At:    p.now(),
	}

	p.mu.Lock()
	p.messages = append(p.messages, msg)
	if over := len(p.messages) - p.config.MaxMessages; over > 0 {
		p.messages = append(p.messages[:0], p.messages[over:]...)
	}
	ids := make([]int, 0, len(p.watchers))
	for id := range p.watchers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	watchers := make([]func(agent.Message), 0, len(ids))
	for _, id := range ids {
		watchers = append(watchers, p.watchers[id])
	}
	p.mu.Unlock()

	for _, fn := range watchers {
		fn(msg)
	}
	return msg
}

// narrate turns a lifecycle event into a panel line
func narrate(e lifecycle.Event) (string, string, agent.Level, bool) {
	switch e.Type {
	case lifecycle.FetchStarted:
		if e.Query == nil {
			return ForecastAgent, "Requesting forecast", agent.LevelInfo, true
		}
		return ForecastAgent, fmt.Sprintf("Requesting forecast for %.4f, %.4f within %.0f km",
			e.Query.Lat, e.Query.Lng, e.Query.RadiusKm), agent.LevelInfo, true

	case lifecycle.FetchSucceeded:
		return ForecastAgent, fmt.Sprintf("Received %d prediction points", e.Count), agent.LevelSuccess, true

	case lifecycle.FetchFailed:
		return ForecastAgent, fmt.Sprintf("Forecast unavailable (%s), showing sample data", e.Error), agent.LevelError, true

	case lifecycle.FetchCancelled:
		return ForecastAgent, fmt.Sprintf("Request #%d was cancelled, keeping the current map", e.Seq), agent.LevelInfo, true

	case lifecycle.FetchSuperseded:
		return ForecastAgent, fmt.Sprintf("Dropped outdated request #%d", e.Seq), agent.LevelInfo, true

	case lifecycle.RenderCommitted:
		text := fmt.Sprintf("Drew %d overlays from %s data (generation %d)", e.Count, e.Source, e.Generation)
		if e.Error != "" {
			return MapAgent, text, agent.LevelWarning, true
		}
		return MapAgent, text, agent.LevelSuccess, true

	case lifecycle.HealthChanged:
		switch backend.HealthState(e.State) {
		case backend.StateOnline:
			return HealthAgent, fmt.Sprintf("%s is online", e.Service), agent.LevelSuccess, true
		case backend.StateColdStarting:
			return HealthAgent, fmt.Sprintf("%s is starting up, this can take a minute", e.Service), agent.LevelWarning, true
		default:
			return HealthAgent, fmt.Sprintf("%s is %s", e.Service, e.State), agent.LevelError, true
		}
	}
	return "", "", "", false
}

// Summarize describes a layer in a few plain lines
func Summarize(l overlay.Layer) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Layer generation %d: %d overlays, source %s, status %s, mode %s.",
		l.Generation, len(l.Overlays), l.Source, l.Status, l.Mode)
	if l.Error != "" {
		fmt.Fprintf(&b, " Last error: %s.", l.Error)
	}
	fmt.Fprintf(&b, "\nArea: %.4f, %.4f within %.0f km.", l.Query.Lat, l.Query.Lng, l.Query.RadiusKm)

	counts := make(map[string]int)
	for _, o := range l.Overlays {
		counts[o.Bucket]++
	}
	parts := make([]string, 0, len(overlayService.Buckets))
	for _, bucket := range overlayService.Buckets {
		if n := counts[bucket.Label]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", bucket.Label, n))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, "\nProbability bands: %s.", strings.Join(parts, ", "))
	}

	focus := "all"
	if l.Filter.BehaviorFocus != nil {
		focus = string(*l.Filter.BehaviorFocus)
	}
	fmt.Fprintf(&b, "\nFilter: confidence >= %d%%, max age %dh, time offset %+dh, behavior %s.",
		l.Filter.MinConfidence, l.Filter.MaxAgeHours, l.Filter.TimeOffsetHours, focus)

	return b.String()
}
