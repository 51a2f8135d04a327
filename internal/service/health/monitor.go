// internal/service/health/monitor.go

package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"orcast/internal/adapter/backend"
	"orcast/internal/domain/lifecycle"
)

// Prober classifies a service's health endpoint
type Prober interface {
	Probe(ctx context.Context, url string) (backend.HealthState, error)
}

// Target is one polled service
type Target struct {
	Name string
	URL  string
}

// ServiceStatus is the last observed health of a target
type ServiceStatus struct {
	Service   string              `json:"service"`
	URL       string              `json:"url"`
	State     backend.HealthState `json:"state"`
	Error     string              `json:"error,omitempty"`
	CheckedAt time.Time           `json:"checked_at,omitempty"`
	ChangedAt time.Time           `json:"changed_at,omitempty"`
}

// MonitorConfig contains configuration for the health monitor
type MonitorConfig struct {
	PollInterval time.Duration
	ProbeTimeout time.Duration
}

// Monitor polls service health endpoints and publishes state transitions
type Monitor struct {
	prober   Prober
	eventBus lifecycle.Bus
	logger   *zap.Logger
	config   MonitorConfig
	targets  []Target
	now      func() time.Time

	mu     sync.RWMutex
	states map[string]ServiceStatus
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor for targets. Targets without a URL are skipped.
func NewMonitor(
	prober Prober,
	eventBus lifecycle.Bus,
	logger *zap.Logger,
	config MonitorConfig,
	targets ...Target,
) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}

	m := &Monitor{
		prober:   prober,
		eventBus: eventBus,
		logger:   logger,
		config:   config,
		now:      time.Now,
		states:   make(map[string]ServiceStatus),
	}

	for _, t := range targets {
		if t.URL == "" {
			continue
		}
		m.targets = append(m.targets, t)
		m.states[t.Name] = ServiceStatus{Service: t.Name, URL: t.URL, State: backend.StateUnknown}
	}

	return m
}

// Start probes every target immediately and then on each poll interval
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return errors.New("health monitor already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.poll(ctx)

	return nil
}

// Stop ends polling and waits for the loop to exit
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns every target's last observed state, ordered by name
func (m *Monitor) Status() []ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ServiceStatus, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// CheckNow probes every target once
func (m *Monitor) CheckNow(ctx context.Context) {
	for _, t := range m.targets {
		m.check(ctx, t)
	}
}

func (m *Monitor) poll(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	m.CheckNow(ctx)

	for {
		select {
		case <-ticker.C:
			m.CheckNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) check(ctx context.Context, t Target) {
	probeCtx := ctx
	if m.config.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, m.config.ProbeTimeout)
		defer cancel()
	}

	state, err := m.prober.Probe(probeCtx, t.URL)
	if ctx.Err() != nil {
		// Cancelled by Stop.
		return
	}

	now := m.now()
	errText := ""
	if err != nil {
		errText = err.Error()
	}

	m.mu.Lock()
	prev := m.states[t.Name]
	next := ServiceStatus{
		Service:   t.Name,
		URL:       t.URL,
		State:     state,
		Error:     errText,
		CheckedAt: now,
		ChangedAt: prev.ChangedAt,
	}
	changed := prev.State != state
	if changed {
		next.ChangedAt = now
	}
	m.states[t.Name] = next
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Info("service health changed",
		zap.String("service", t.Name),
		zap.String("from", string(prev.State)),
		zap.String("to", string(state)),
		zap.String("error", errText),
	)

	e := lifecycle.Event{
		Type:    lifecycle.HealthChanged,
		Service: t.Name,
		State:   string(state),
		Error:   errText,
		At:      now,
	}
	if err := m.eventBus.Publish(context.Background(), e); err != nil {
		m.logger.Warn("failed to publish health change", zap.String("service", t.Name), zap.Error(err))
	}
}
