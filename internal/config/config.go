// internal/config/config.go

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Backend     BackendConfig
	LLM         LLMConfig
	Render      RenderConfig
	Panel       PanelConfig
	Health      HealthConfig
	Station     StationConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration. The database is optional;
// when disabled, stations and render history are kept in memory.
type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration. An empty URL selects the in-process bus.
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
	SubjectPrefix  string
}

// BackendConfig holds the prediction backend configuration
type BackendConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	DefaultLat     float64
	DefaultLng     float64
	DefaultRadius  float64
	MaxRadius      float64
}

// LLMConfig holds the Gemma service configuration used by the agent panel
type LLMConfig struct {
	APIKey    string
	Model     string
	HealthURL string
	Timeout   time.Duration
}

// RenderConfig holds overlay renderer configuration
type RenderConfig struct {
	Mode            string
	MinRadiusMeters float64
	MaxRadiusMeters float64
	MinOpacity      float64
	MaxOpacity      float64
	HistorySize     int
	RefetchOnFilter bool
}

// PanelConfig holds agent panel configuration
type PanelConfig struct {
	MaxMessages int
}

// HealthConfig holds service health polling configuration
type HealthConfig struct {
	PollInterval time.Duration
	ProbeTimeout time.Duration
}

// StationConfig holds hydrophone lookup configuration
type StationConfig struct {
	NearbyRadiusKm float64
}

// Load loads configuration from environment variables, after merging a
// .env file when one is present.
func Load() (Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 40*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Enabled:      getEnvAsBool("DB_ENABLED", false),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "orcast"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", ""),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
			SubjectPrefix:  getEnv("NATS_SUBJECT_PREFIX", "orcast"),
		},
		Backend: BackendConfig{
			BaseURL:        getEnv("BACKEND_URL", "http://localhost:8000"),
			RequestTimeout: getEnvAsDuration("BACKEND_REQUEST_TIMEOUT", 30*time.Second),
			DefaultLat:     getEnvAsFloat("BACKEND_DEFAULT_LAT", 48.5465),
			DefaultLng:     getEnvAsFloat("BACKEND_DEFAULT_LNG", -123.0095),
			DefaultRadius:  getEnvAsFloat("BACKEND_DEFAULT_RADIUS_KM", 50.0),
			MaxRadius:      getEnvAsFloat("BACKEND_MAX_RADIUS_KM", 500.0),
		},
		LLM: LLMConfig{
			APIKey:    getEnv("LLM_API_KEY", ""),
			Model:     getEnv("LLM_MODEL", "gemma-3-27b-it"),
			HealthURL: getEnv("LLM_HEALTH_URL", ""),
			Timeout:   getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Render: RenderConfig{
			Mode:            getEnv("RENDER_MODE", "circles"),
			MinRadiusMeters: getEnvAsFloat("RENDER_MIN_RADIUS_METERS", 500.0),
			MaxRadiusMeters: getEnvAsFloat("RENDER_MAX_RADIUS_METERS", 5000.0),
			MinOpacity:      getEnvAsFloat("RENDER_MIN_OPACITY", 0.2),
			MaxOpacity:      getEnvAsFloat("RENDER_MAX_OPACITY", 0.8),
			HistorySize:     getEnvAsInt("RENDER_HISTORY_SIZE", 100),
			RefetchOnFilter: getEnvAsBool("RENDER_REFETCH_ON_FILTER", true),
		},
		Panel: PanelConfig{
			MaxMessages: getEnvAsInt("PANEL_MAX_MESSAGES", 50),
		},
		Health: HealthConfig{
			PollInterval: getEnvAsDuration("HEALTH_POLL_INTERVAL", 30*time.Second),
			ProbeTimeout: getEnvAsDuration("HEALTH_PROBE_TIMEOUT", 5*time.Second),
		},
		Station: StationConfig{
			NearbyRadiusKm: getEnvAsFloat("STATION_NEARBY_RADIUS_KM", 25.0),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	u, err := url.Parse(config.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend url must be an absolute http(s) url, got %q", config.Backend.BaseURL)
	}

	if config.Backend.DefaultRadius <= 0 || config.Backend.DefaultRadius > config.Backend.MaxRadius {
		return fmt.Errorf("default radius %.1f km must be in (0, %.1f]", config.Backend.DefaultRadius, config.Backend.MaxRadius)
	}

	if config.Render.MinRadiusMeters > config.Render.MaxRadiusMeters {
		return fmt.Errorf("render min radius %.0f exceeds max radius %.0f", config.Render.MinRadiusMeters, config.Render.MaxRadiusMeters)
	}

	if config.Render.MinOpacity < 0 || config.Render.MaxOpacity > 1 || config.Render.MinOpacity > config.Render.MaxOpacity {
		return fmt.Errorf("render opacity range [%.2f, %.2f] is invalid", config.Render.MinOpacity, config.Render.MaxOpacity)
	}

	switch config.Render.Mode {
	case "circles", "markers", "heatmap":
	default:
		return fmt.Errorf("unknown render mode %q", config.Render.Mode)
	}

	if config.Panel.MaxMessages < 1 {
		return fmt.Errorf("panel must keep at least one message")
	}

	if config.Render.HistorySize < 1 {
		return fmt.Errorf("render history must keep at least one record")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
