package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"orcast/internal/adapter/backend"
	"orcast/internal/adapter/eventbus"
	"orcast/internal/adapter/storage"
	"orcast/internal/config"
	"orcast/internal/domain/agent"
	"orcast/internal/domain/forecast"
	"orcast/internal/domain/overlay"
	"orcast/internal/server/handlers"
	agentService "orcast/internal/service/agent"
	"orcast/internal/service/controls"
	forecastService "orcast/internal/service/forecast"
	"orcast/internal/service/health"
	overlayService "orcast/internal/service/overlay"
	stationService "orcast/internal/service/station"
)

var sanJuan = forecast.Query{Lat: 48.5465, Lng: -123.0095, RadiusKm: 50}

type staticFetcher struct{}

func (staticFetcher) Fetch(_ context.Context, q forecast.Query) ([]forecast.PredictionPoint, error) {
	return []forecast.PredictionPoint{
		{Lat: q.Lat, Lng: q.Lng, Probability: 0.87, Confidence: 0.92, Behavior: forecast.BehaviorFeeding, Timestamp: time.Now()},
		{Lat: q.Lat + 0.05, Lng: q.Lng - 0.05, Probability: 0.30, Confidence: 0.40, Behavior: forecast.BehaviorTraveling, Timestamp: time.Now()},
	}, nil
}

type echoResponder struct{}

func (echoResponder) Answer(_ context.Context, prompt string) (string, error) {
	return "Layer looks busy near San Juan Island.", nil
}

type staticHealth struct{}

func (staticHealth) Status() []health.ServiceStatus {
	return []health.ServiceStatus{{Service: "backend", URL: "http://backend/health", State: backend.StateOnline}}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	bus := eventbus.NewLocalBus()
	renderer := overlayService.NewLayerRenderer(overlayService.RendererConfig{
		Mode:            overlay.ModeCircles,
		MinRadiusMeters: 500,
		MaxRadiusMeters: 5000,
		MinOpacity:      0.2,
		MaxOpacity:      0.8,
	})
	history := storage.NewMemoryHistoryStore(10)
	coordinator := forecastService.NewCoordinator(staticFetcher{}, renderer, history, bus, logger,
		forecastService.CoordinatorConfig{MaxRadiusKm: 500})
	ctl := controls.NewControls(coordinator, renderer, logger, controls.Config{DefaultQuery: sanJuan})

	registry, err := stationService.NewRegistry(ctx, storage.NewStaticStationStore(stationService.DefaultStations()))
	require.NoError(t, err)

	panel, err := agentService.NewPanel(bus, echoResponder{}, renderer, logger, agentService.PanelConfig{MaxMessages: 50})
	require.NoError(t, err)
	t.Cleanup(panel.Close)

	return NewServer(
		config.ServerConfig{Host: "127.0.0.1", Port: 0, CorsOrigins: []string{"*"}},
		config.StationConfig{NearbyRadiusKm: 25},
		logger,
		bus,
		ctl,
		renderer,
		history,
		registry,
		panel,
		staticHealth{},
	)
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestForecastRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/forecast/layer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var layer overlay.Layer
	decode(t, rec, &layer)
	assert.Equal(t, overlay.StatusIdle, layer.Status)
	assert.Empty(t, layer.Overlays)

	rec = do(t, srv, http.MethodPost, "/api/v1/forecast/refresh", `{"lat":48.5465,"lng":-123.0095,"radius_km":50}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &layer)
	assert.Equal(t, overlay.SourceLive, layer.Source)
	assert.Equal(t, overlay.StatusOK, layer.Status)
	require.Len(t, layer.Overlays, 2)
	assert.Equal(t, "Very High", layer.Overlays[0].Bucket)
	assert.Equal(t, "#d73027", layer.Overlays[0].Color)

	rec = do(t, srv, http.MethodPost, "/api/v1/forecast/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &layer)
	assert.Equal(t, sanJuan, layer.Query)

	rec = do(t, srv, http.MethodPost, "/api/v1/forecast/refresh", `{"lat":48.5,"lng":-123,"radius_km":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/forecast/refresh", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/forecast/history?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []overlay.RenderRecord
	decode(t, rec, &records)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].OverlayCount)

	rec = do(t, srv, http.MethodGet, "/api/v1/forecast/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/forecast/buckets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var buckets []overlay.Bucket
	decode(t, rec, &buckets)
	assert.Len(t, buckets, 5)
}

func TestFilterRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPut, "/api/v1/filter", `{"type":"set_min_confidence","value":50}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Filter forecast.FilterState `json:"filter"`
		Layer  overlay.Layer        `json:"layer"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 50, resp.Filter.MinConfidence)
	require.Len(t, resp.Layer.Overlays, 1)
	assert.Equal(t, "Very High", resp.Layer.Overlays[0].Bucket)

	rec = do(t, srv, http.MethodGet, "/api/v1/filter", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var f forecast.FilterState
	decode(t, rec, &f)
	assert.Equal(t, 50, f.MinConfidence)

	rec = do(t, srv, http.MethodPut, "/api/v1/filter", `{"type":"zoom"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStationRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/stations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]interface{}
	decode(t, rec, &all)
	assert.Len(t, all, 7)

	rec = do(t, srv, http.MethodGet, "/api/v1/stations?region=puget%20sound", "")
	decode(t, rec, &all)
	assert.Len(t, all, 4)

	rec = do(t, srv, http.MethodGet, "/api/v1/stations/lime-kiln", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var one map[string]interface{}
	decode(t, rec, &one)
	assert.Equal(t, "Lime Kiln", one["name"])

	rec = do(t, srv, http.MethodGet, "/api/v1/stations/atlantis", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/stations/nearby?lat=48.5159&lng=-123.1523&radius_km=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var nearby []map[string]interface{}
	decode(t, rec, &nearby)
	require.NotEmpty(t, nearby)
	assert.Equal(t, "lime-kiln", nearby[0]["id"])

	rec = do(t, srv, http.MethodGet, "/api/v1/stations/nearby?lat=48.5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/stations/nearby?lat=91&lng=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/forecast/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/agents/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []agent.Message
	decode(t, rec, &msgs)
	require.Len(t, msgs, 3)
	assert.Equal(t, agentService.ForecastAgent, msgs[0].Agent)
	assert.Equal(t, agentService.MapAgent, msgs[2].Agent)

	rec = do(t, srv, http.MethodPost, "/api/v1/agents/ask", `{"question":"any orcas?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var answer agent.Message
	decode(t, rec, &answer)
	assert.Equal(t, agentService.Assistant, answer.Agent)
	assert.Equal(t, "Layer looks busy near San Juan Island.", answer.Text)

	rec = do(t, srv, http.MethodPost, "/api/v1/agents/ask", `{"question":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusRoute(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Services []health.ServiceStatus `json:"services"`
		Layer    struct {
			Status string `json:"status"`
		} `json:"layer"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Services, 1)
	assert.Equal(t, backend.StateOnline, resp.Services[0].State)
	assert.Equal(t, "idle", resp.Layer.Status)
}

func TestLayerWebSocket(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/layer"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var frame handlers.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, handlers.FrameSnapshot, frame.Type)

	require.NoError(t, conn.WriteJSON(controls.Action{Type: controls.Refresh}))

	sawAgent := false
	for {
		var f struct {
			Type  string        `json:"type"`
			Layer overlay.Layer `json:"layer"`
		}
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == handlers.FrameAgent {
			sawAgent = true
		}
		if f.Type == handlers.FrameLayer {
			assert.Equal(t, overlay.StatusOK, f.Layer.Status)
			assert.Len(t, f.Layer.Overlays, 2)
			break
		}
	}
	assert.True(t, sawAgent)
}
