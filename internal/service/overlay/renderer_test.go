package overlay

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"orcast/internal/domain/forecast"
	"orcast/internal/domain/overlay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestRenderer(mode overlay.Mode) *LayerRenderer {
	r := NewLayerRenderer(RendererConfig{
		Mode:            mode,
		MinRadiusMeters: 500,
		MaxRadiusMeters: 5000,
		MinOpacity:      0.2,
		MaxOpacity:      0.8,
	})
	r.now = func() time.Time { return testNow }
	return r
}

func point(lat, lng, prob, conf float64, age time.Duration, b forecast.Behavior) forecast.PredictionPoint {
	return forecast.PredictionPoint{
		Lat:         lat,
		Lng:         lng,
		Probability: prob,
		Confidence:  conf,
		Behavior:    b,
		Timestamp:   testNow.Add(-age),
	}
}

func TestBucketFor_Boundaries(t *testing.T) {
	tests := []struct {
		probability float64
		want        string
	}{
		{0.0, "Very Low"},
		{0.19, "Very Low"},
		{0.20, "Low"},
		{0.39, "Low"},
		{0.40, "Moderate"},
		{0.59, "Moderate"},
		{0.60, "High"},
		{0.79, "High"},
		{0.80, "Very High"},
		{1.0, "Very High"},
		{-0.5, "Very Low"},
		{1.5, "Very High"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.probability), func(t *testing.T) {
			assert.Equal(t, tt.want, BucketFor(tt.probability).Label)
		})
	}
}

func TestBuckets_DescendingAndDistinct(t *testing.T) {
	colors := map[string]bool{}
	for i, b := range Buckets {
		if i > 0 {
			assert.Less(t, b.MinValue, Buckets[i-1].MinValue)
		}
		assert.False(t, colors[b.Color])
		colors[b.Color] = true
	}
	assert.Zero(t, Buckets[len(Buckets)-1].MinValue)
}

func TestRender_SanJuanScenario(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)

	commit, err := r.Render(overlay.RenderInput{
		Generation: 1,
		Points:     []forecast.PredictionPoint{point(48.5465, -123.0095, 0.87, 0.92, 0, forecast.BehaviorFeeding)},
		Query:      forecast.Query{Lat: 48.5465, Lng: -123.0095, RadiusKm: 50},
		Source:     overlay.SourceLive,
	})
	require.NoError(t, err)

	layer := commit.Layer
	require.Len(t, layer.Overlays, 1)
	o := layer.Overlays[0]
	assert.Equal(t, "Very High", o.Bucket)
	assert.Equal(t, "#d73027", o.Color)
	assert.Equal(t, 48.5465, o.Lat)
	assert.Equal(t, -123.0095, o.Lng)
	assert.Equal(t, overlay.KindCircle, o.Kind)
	assert.Equal(t, uint64(1), o.Generation)
	assert.InDelta(t, 500+0.87*4500, o.RadiusMeters, 1e-9)
	assert.InDelta(t, 0.2+0.87*0.6, o.Opacity, 1e-9)
	assert.Contains(t, o.Info, "Very High (87%)")
	assert.Contains(t, o.Info, "feeding")
	assert.Contains(t, o.Info, "confidence 92%")

	assert.Equal(t, overlay.StatusOK, layer.Status)
	assert.Equal(t, overlay.SourceLive, layer.Source)
	require.NotNil(t, layer.Bounds)
	assert.InDelta(t, 48.5465, layer.Bounds.North, 1e-9)
	assert.InDelta(t, 48.5465, layer.Bounds.South, 1e-9)
	assert.InDelta(t, -123.0095, layer.Bounds.East, 1e-9)
	assert.InDelta(t, -123.0095, layer.Bounds.West, 1e-9)
}

func TestRender_MinConfidenceSubset(t *testing.T) {
	points := []forecast.PredictionPoint{
		point(48.1, -123.1, 0.5, 0.10, 0, forecast.BehaviorFeeding),
		point(48.2, -123.2, 0.5, 0.57, 0, forecast.BehaviorFeeding),
		point(48.3, -123.3, 0.5, 0.70, 0, forecast.BehaviorFeeding),
		point(48.4, -123.4, 0.5, 1.00, 0, forecast.BehaviorFeeding),
		point(48.5, -123.5, 0.5, 0.00, 0, forecast.BehaviorFeeding),
	}

	for _, minConf := range []int{0, 10, 11, 57, 58, 70, 99, 100} {
		t.Run(fmt.Sprintf("min=%d", minConf), func(t *testing.T) {
			r := newTestRenderer(overlay.ModeCircles)
			commit, err := r.Render(overlay.RenderInput{
				Generation: 1,
				Points:     points,
				Filter:     forecast.FilterState{MinConfidence: minConf},
			})
			require.NoError(t, err)

			var want []float64
			for _, p := range points {
				if confidencePercent(p.Confidence) >= float64(minConf) {
					want = append(want, p.Lat)
				}
			}
			var got []float64
			for _, o := range commit.Layer.Overlays {
				got = append(got, o.Lat)
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestRender_MinConfidenceBoundaryIsInclusive(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)
	commit, err := r.Render(overlay.RenderInput{
		Generation: 1,
		Points:     []forecast.PredictionPoint{point(48, -123, 0.5, 0.57, 0, forecast.BehaviorFeeding)},
		Filter:     forecast.FilterState{MinConfidence: 57},
	})
	require.NoError(t, err)
	assert.Len(t, commit.Layer.Overlays, 1)
}

func TestRender_MaxAge(t *testing.T) {
	points := []forecast.PredictionPoint{
		point(48.1, -123, 0.5, 0.9, 30*time.Minute, forecast.BehaviorFeeding),
		point(48.2, -123, 0.5, 0.9, 2*time.Hour, forecast.BehaviorFeeding),
		point(48.3, -123, 0.5, 0.9, 2*time.Hour+time.Second, forecast.BehaviorFeeding),
		point(48.4, -123, 0.5, 0.9, 48*time.Hour, forecast.BehaviorFeeding),
		point(48.5, -123, 0.5, 0.9, -3*time.Hour, forecast.BehaviorFeeding),
	}

	tests := []struct {
		maxAge int
		want   []float64
	}{
		{0, []float64{48.1, 48.2, 48.3, 48.4, 48.5}},
		{2, []float64{48.1, 48.2, 48.5}},
		{1, []float64{48.1, 48.5}},
		{72, []float64{48.1, 48.2, 48.3, 48.4, 48.5}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%dh", tt.maxAge), func(t *testing.T) {
			r := newTestRenderer(overlay.ModeCircles)
			commit, err := r.Render(overlay.RenderInput{
				Generation: 1,
				Points:     points,
				Filter:     forecast.FilterState{MaxAgeHours: tt.maxAge},
			})
			require.NoError(t, err)

			var got []float64
			for _, o := range commit.Layer.Overlays {
				got = append(got, o.Lat)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_TimeOffsetShiftsReference(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)

	// Three hours back on the slider: a point stamped two hours ago is in
	// the future of the reference time and a point five hours ago is two
	// hours old.
	commit, err := r.Render(overlay.RenderInput{
		Generation: 1,
		Points: []forecast.PredictionPoint{
			point(48.1, -123, 0.5, 0.9, 2*time.Hour, forecast.BehaviorFeeding),
			point(48.2, -123, 0.5, 0.9, 5*time.Hour, forecast.BehaviorFeeding),
			point(48.3, -123, 0.5, 0.9, 6*time.Hour, forecast.BehaviorFeeding),
		},
		Filter: forecast.FilterState{MaxAgeHours: 2, TimeOffsetHours: -3},
	})
	require.NoError(t, err)
	require.Len(t, commit.Layer.Overlays, 2)
	assert.Equal(t, 48.1, commit.Layer.Overlays[0].Lat)
	assert.Equal(t, 48.2, commit.Layer.Overlays[1].Lat)
}

func TestRender_BehaviorFocus(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)
	focus := forecast.BehaviorSocializing

	commit, err := r.Render(overlay.RenderInput{
		Generation: 1,
		Points: []forecast.PredictionPoint{
			point(48.1, -123, 0.5, 0.9, 0, forecast.BehaviorFeeding),
			point(48.2, -123, 0.5, 0.9, 0, forecast.BehaviorSocializing),
			point(48.3, -123, 0.5, 0.9, 0, forecast.BehaviorTraveling),
		},
		Filter: forecast.FilterState{BehaviorFocus: &focus},
	})
	require.NoError(t, err)
	require.Len(t, commit.Layer.Overlays, 1)
	assert.Equal(t, 48.2, commit.Layer.Overlays[0].Lat)
}

func TestRender_GenerationReplacesOnlyPrevious(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)

	first, err := r.Render(overlay.RenderInput{
		Generation: 1,
		Points: []forecast.PredictionPoint{
			point(48.1, -123, 0.5, 0.9, 0, forecast.BehaviorFeeding),
			point(48.2, -123, 0.5, 0.9, 0, forecast.BehaviorFeeding),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, first.RemovedOverlayIDs)
	assert.Zero(t, first.RemovedGeneration)

	second, err := r.Render(overlay.RenderInput{
		Generation: 3,
		Points:     []forecast.PredictionPoint{point(48.3, -123, 0.5, 0.9, 0, forecast.BehaviorFeeding)},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), second.RemovedGeneration)
	assert.ElementsMatch(t,
		[]string{first.Layer.Overlays[0].ID, first.Layer.Overlays[1].ID},
		second.RemovedOverlayIDs,
	)
	for _, o := range second.Layer.Overlays {
		assert.Equal(t, uint64(3), o.Generation)
	}
}

func TestRender_RejectsStaleGeneration(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)

	_, err := r.Render(overlay.RenderInput{
		Generation: 5,
		Points:     []forecast.PredictionPoint{point(48.1, -123, 0.9, 0.9, 0, forecast.BehaviorFeeding)},
	})
	require.NoError(t, err)

	for _, g := range []uint64{4, 5} {
		_, err = r.Render(overlay.RenderInput{Generation: g})
		assert.ErrorIs(t, err, overlay.ErrStaleGeneration)
	}

	layer := r.Current()
	assert.Equal(t, uint64(5), layer.Generation)
	assert.Len(t, layer.Overlays, 1)
}

func TestRender_Modes(t *testing.T) {
	p := []forecast.PredictionPoint{point(48.1, -123, 0.5, 0.9, 0, forecast.BehaviorFeeding)}

	r := newTestRenderer(overlay.ModeHeatmap)
	commit, err := r.Render(overlay.RenderInput{Generation: 1, Points: p})
	require.NoError(t, err)
	o := commit.Layer.Overlays[0]
	assert.Equal(t, overlay.KindHeatmap, o.Kind)
	assert.Equal(t, 0.5, o.Weight)
	assert.Zero(t, o.RadiusMeters)
	assert.Equal(t, overlay.ModeHeatmap, commit.Layer.Mode)

	r.SetMode(overlay.ModeMarkers)
	commit, err = r.Render(overlay.RenderInput{Generation: 2, Points: p})
	require.NoError(t, err)
	o = commit.Layer.Overlays[0]
	assert.Equal(t, overlay.KindMarker, o.Kind)
	assert.InDelta(t, 0.5, o.Opacity, 1e-9)
	assert.Zero(t, o.RadiusMeters)
}

func TestRender_FallbackStatusKept(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)

	commit, err := r.Render(overlay.RenderInput{
		Generation: 1,
		Points:     []forecast.PredictionPoint{point(48.1, -123, 0.5, 0.9, 0, forecast.BehaviorFeeding)},
		Source:     overlay.SourceSample,
		Status:     overlay.StatusError,
		Error:      "backend unavailable",
	})
	require.NoError(t, err)
	assert.Equal(t, overlay.SourceSample, commit.Layer.Source)
	assert.Equal(t, overlay.StatusError, commit.Layer.Status)
	assert.Equal(t, "backend unavailable", commit.Layer.Error)
}

func TestRender_EmptyHasNoBounds(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)
	commit, err := r.Render(overlay.RenderInput{Generation: 1})
	require.NoError(t, err)
	assert.Empty(t, commit.Layer.Overlays)
	assert.Nil(t, commit.Layer.Bounds)
}

func TestMarkLoading(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)
	assert.Equal(t, overlay.StatusIdle, r.Current().Status)

	r.MarkLoading(1)
	assert.Equal(t, overlay.StatusLoading, r.Current().Status)

	_, err := r.Render(overlay.RenderInput{Generation: 1})
	require.NoError(t, err)
	assert.Equal(t, overlay.StatusOK, r.Current().Status)

	// A generation that already committed cannot flip the layer back.
	r.MarkLoading(1)
	assert.Equal(t, overlay.StatusOK, r.Current().Status)
}

func TestClearLoading_RestoresCommittedStatus(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)

	_, err := r.Render(overlay.RenderInput{
		Generation: 1,
		Status:     overlay.StatusError,
		Error:      "backend unreachable",
		Source:     overlay.SourceSample,
	})
	require.NoError(t, err)

	r.MarkLoading(2)
	require.Equal(t, overlay.StatusLoading, r.Current().Status)
	assert.Empty(t, r.Current().Error)

	// Only the generation that is loading can be cleared.
	r.ClearLoading(3)
	assert.Equal(t, overlay.StatusLoading, r.Current().Status)

	r.ClearLoading(2)
	layer := r.Current()
	assert.Equal(t, overlay.StatusError, layer.Status)
	assert.Equal(t, "backend unreachable", layer.Error)
	assert.Equal(t, uint64(1), layer.Generation)

	// A later commit wins over a stale clear.
	r.MarkLoading(4)
	_, err = r.Render(overlay.RenderInput{Generation: 4})
	require.NoError(t, err)
	r.ClearLoading(4)
	assert.Equal(t, overlay.StatusOK, r.Current().Status)
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	r := newTestRenderer(overlay.ModeCircles)
	_, err := r.Render(overlay.RenderInput{
		Generation: 1,
		Points:     []forecast.PredictionPoint{point(48.1, -123, 0.5, 0.9, 0, forecast.BehaviorFeeding)},
	})
	require.NoError(t, err)

	layer := r.Current()
	layer.Overlays[0].Color = "#000000"

	assert.NotEqual(t, "#000000", r.Current().Overlays[0].Color)
}
