package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, 50, cfg.Panel.MaxMessages)
	assert.Equal(t, "circles", cfg.Render.Mode)
	assert.False(t, cfg.Database.Enabled)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BACKEND_URL", "https://whale.example.run.app")
	t.Setenv("BACKEND_REQUEST_TIMEOUT", "5s")
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RENDER_MODE", "heatmap")
	t.Setenv("DB_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://whale.example.run.app", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CorsOrigins)
	assert.Equal(t, "heatmap", cfg.Render.Mode)
	assert.True(t, cfg.Database.Enabled)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("HEALTH_POLL_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Health.PollInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"relative backend url", map[string]string{"BACKEND_URL": "/forecast"}},
		{"ftp backend url", map[string]string{"BACKEND_URL": "ftp://host"}},
		{"radius above max", map[string]string{"BACKEND_DEFAULT_RADIUS_KM": "900"}},
		{"inverted render radius", map[string]string{"RENDER_MIN_RADIUS_METERS": "9000"}},
		{"opacity above one", map[string]string{"RENDER_MAX_OPACITY": "1.5"}},
		{"unknown mode", map[string]string{"RENDER_MODE": "hexbin"}},
		{"empty panel", map[string]string{"PANEL_MAX_MESSAGES": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
