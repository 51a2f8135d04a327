// internal/adapter/backend/client.go

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"orcast/internal/domain/forecast"
)

const quickForecastPath = "/forecast/quick"

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 4 << 20

// Config configures the prediction backend client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the whale prediction backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a new prediction backend client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

type quickRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radius_km"`
}

type quickResponse struct {
	Location *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
	Prediction *struct {
		Probability        *float64 `json:"probability"`
		Confidence         *float64 `json:"confidence"`
		BehaviorPrediction struct {
			Primary string `json:"primary"`
		} `json:"behavior_prediction"`
		EnvironmentalFactors map[string]interface{} `json:"environmental_factors"`
	} `json:"prediction"`
	Timestamp *time.Time  `json:"timestamp"`
	Grid      []gridPoint `json:"grid"`
}

type gridPoint struct {
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	Probability float64    `json:"probability"`
	Confidence  float64    `json:"confidence"`
	Behavior    string     `json:"behavior"`
	Timestamp   *time.Time `json:"timestamp"`
}

// Fetch posts the query to /forecast/quick and normalizes the response
func (c *Client) Fetch(ctx context.Context, q forecast.Query) ([]forecast.PredictionPoint, error) {
	body, err := json.Marshal(quickRequest{Lat: q.Lat, Lng: q.Lng, RadiusKm: q.RadiusKm})
	if err != nil {
		return nil, fmt.Errorf("error marshaling forecast request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+quickForecastPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error building forecast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &forecast.FetchError{Kind: forecast.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &forecast.FetchError{Kind: forecast.KindNetwork, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &forecast.FetchError{
			Kind:       forecast.KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", snippet(raw)),
		}
	}

	var payload quickResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &forecast.FetchError{Kind: forecast.KindMalformed, Err: err}
	}

	points, err := c.normalize(q, payload)
	if err != nil {
		return nil, &forecast.FetchError{Kind: forecast.KindMalformed, Err: err}
	}

	c.logger.Debug("forecast fetched",
		zap.Float64("lat", q.Lat),
		zap.Float64("lng", q.Lng),
		zap.Int("points", len(points)),
	)

	return points, nil
}

func (c *Client) normalize(q forecast.Query, payload quickResponse) ([]forecast.PredictionPoint, error) {
	fetchedAt := c.now()
	if payload.Timestamp != nil {
		fetchedAt = *payload.Timestamp
	}

	if len(payload.Grid) > 0 {
		points := make([]forecast.PredictionPoint, 0, len(payload.Grid))
		for i, cell := range payload.Grid {
			if err := checkUnit("probability", cell.Probability); err != nil {
				return nil, fmt.Errorf("grid cell %d: %w", i, err)
			}
			if err := checkUnit("confidence", cell.Confidence); err != nil {
				return nil, fmt.Errorf("grid cell %d: %w", i, err)
			}
			ts := fetchedAt
			if cell.Timestamp != nil {
				ts = *cell.Timestamp
			}
			points = append(points, forecast.PredictionPoint{
				Lat:         cell.Lat,
				Lng:         cell.Lng,
				Probability: cell.Probability,
				Behavior:    forecast.ParseBehavior(cell.Behavior),
				Confidence:  cell.Confidence,
				Timestamp:   ts,
			})
		}
		return points, nil
	}

	if payload.Prediction == nil {
		return nil, errors.New("response has no prediction")
	}
	if payload.Prediction.Probability == nil {
		return nil, errors.New("prediction has no probability")
	}

	probability := *payload.Prediction.Probability
	if err := checkUnit("probability", probability); err != nil {
		return nil, err
	}

	// Older backend builds omit confidence; treat that as no confidence at all.
	confidence := 0.0
	if payload.Prediction.Confidence != nil {
		confidence = *payload.Prediction.Confidence
		if err := checkUnit("confidence", confidence); err != nil {
			return nil, err
		}
	}

	lat, lng := q.Lat, q.Lng
	if payload.Location != nil {
		lat, lng = payload.Location.Lat, payload.Location.Lng
	}

	return []forecast.PredictionPoint{{
		Lat:         lat,
		Lng:         lng,
		Probability: probability,
		Behavior:    forecast.ParseBehavior(payload.Prediction.BehaviorPrediction.Primary),
		Confidence:  confidence,
		Timestamp:   fetchedAt,
	}}, nil
}

func checkUnit(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%s %v outside [0,1]", name, v)
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return s
}
