// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"orcast/internal/config"
	"orcast/internal/domain/agent"
	"orcast/internal/domain/lifecycle"
	"orcast/internal/domain/overlay"
	"orcast/internal/domain/station"
	"orcast/internal/server/handlers"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.ServerConfig,
	stationCfg config.StationConfig,
	logger *zap.Logger,
	eventBus lifecycle.Bus,
	controls handlers.Controller,
	layers handlers.LayerSource,
	history overlay.HistoryStore,
	stations station.Registry,
	panel agent.Panel,
	health handlers.HealthSource,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	forecastHandler := handlers.NewForecastHandler(controls, layers, history, logger)
	filterHandler := handlers.NewFilterHandler(controls, logger)
	stationHandler := handlers.NewStationHandler(stations, stationCfg.NearbyRadiusKm)
	agentHandler := handlers.NewAgentHandler(panel)
	statusHandler := handlers.NewStatusHandler(health, layers)

	// Routes
	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			// Forecast layer API
			r.Route("/forecast", func(r chi.Router) {
				r.Get("/layer", forecastHandler.GetLayer)
				r.Post("/refresh", forecastHandler.Refresh)
				r.Get("/history", forecastHandler.GetHistory)
				r.Get("/buckets", forecastHandler.GetBuckets)
			})

			// Time/filter controls
			r.Get("/filter", filterHandler.GetFilter)
			r.Put("/filter", filterHandler.ApplyAction)

			// Hydrophone stations API
			r.Route("/stations", func(r chi.Router) {
				r.Get("/", stationHandler.ListStations)
				r.Get("/nearby", stationHandler.GetNearbyStations)
				r.Get("/{id}", stationHandler.GetStation)
			})

			// Agent panel API
			r.Route("/agents", func(r chi.Router) {
				r.Get("/messages", agentHandler.GetMessages)
				r.Post("/ask", agentHandler.Ask)
			})

			r.Get("/status", statusHandler.GetStatus)
		})
	})

	// WebSocket endpoint for live layer updates
	router.Method(http.MethodGet, "/ws/layer", handlers.NewLayerSocket(
		eventBus,
		layers,
		panel,
		controls,
		logger,
		handlers.DefaultWebSocketConfig(),
	))

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
