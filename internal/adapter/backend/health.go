// internal/adapter/backend/health.go

package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// HealthState is the connectivity indicator value for a service
type HealthState string

const (
	StateUnknown      HealthState = "unknown"
	StateOnline       HealthState = "online"
	StateColdStarting HealthState = "cold_starting"
	StateOffline      HealthState = "offline"
)

// Prober checks a service's /health endpoint
type Prober struct {
	httpClient *http.Client
}

// NewProber creates a prober whose requests give up after timeout
func NewProber(timeout time.Duration) *Prober {
	return &Prober{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// HealthURL derives the health endpoint of a service base URL
func HealthURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/health"
}

// Probe issues GET url and classifies the outcome. A 503 or a timeout means
// the service is cold starting; other failures mean it is offline.
func (p *Prober) Probe(ctx context.Context, url string) (HealthState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StateOffline, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return StateColdStarting, err
		}
		return StateOffline, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return StateOnline, nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		return StateColdStarting, nil
	default:
		return StateOffline, nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
