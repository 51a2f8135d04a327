// cmd/api/main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"orcast/internal/adapter/backend"
	"orcast/internal/adapter/eventbus"
	"orcast/internal/adapter/llm"
	"orcast/internal/adapter/storage"
	"orcast/internal/config"
	"orcast/internal/domain/agent"
	"orcast/internal/domain/forecast"
	"orcast/internal/domain/lifecycle"
	"orcast/internal/domain/overlay"
	"orcast/internal/domain/station"
	"orcast/internal/logging"
	"orcast/internal/server"
	agentService "orcast/internal/service/agent"
	"orcast/internal/service/controls"
	forecastService "orcast/internal/service/forecast"
	healthService "orcast/internal/service/health"
	overlayService "orcast/internal/service/overlay"
	stationService "orcast/internal/service/station"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("orcast stopped with error", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

func run(cfg config.Config, logger *zap.Logger) error {
	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var (
		history      overlay.HistoryStore
		stationStore station.Store
	)
	if cfg.Database.Enabled {
		db, err := initDatabase(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		pgStations := storage.NewStationStore(db)
		if err := pgStations.EnsureSchema(ctx); err != nil {
			return err
		}
		seeded, err := pgStations.Seed(ctx, stationService.DefaultStations())
		if err != nil {
			return err
		}
		if seeded > 0 {
			logger.Info("Seeded hydrophone stations", zap.Int("count", seeded))
		}

		pgHistory := storage.NewHistoryStore(db)
		if err := pgHistory.EnsureSchema(ctx); err != nil {
			return err
		}

		stationStore = pgStations
		history = pgHistory
	} else {
		stationStore = storage.NewStaticStationStore(stationService.DefaultStations())
		history = storage.NewMemoryHistoryStore(cfg.Render.HistorySize)
	}

	// Initialize event bus
	var eventBus lifecycle.Bus
	if cfg.NATS.URL != "" {
		natsConn, err := initNATS(cfg.NATS, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsConn.Close()
		eventBus = eventbus.NewNATSBus(natsConn, cfg.NATS.SubjectPrefix, logger)
	} else {
		logger.Info("NATS not configured, using in-process event bus")
		eventBus = eventbus.NewLocalBus()
	}

	// Initialize forecast pipeline
	backendClient := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.RequestTimeout,
	}, logger.Named("backend"))

	renderer := overlayService.NewLayerRenderer(overlayService.RendererConfig{
		Mode:            overlay.ParseMode(cfg.Render.Mode),
		MinRadiusMeters: cfg.Render.MinRadiusMeters,
		MaxRadiusMeters: cfg.Render.MaxRadiusMeters,
		MinOpacity:      cfg.Render.MinOpacity,
		MaxOpacity:      cfg.Render.MaxOpacity,
	})

	coordinator := forecastService.NewCoordinator(
		backendClient,
		renderer,
		history,
		eventBus,
		logger.Named("forecast"),
		forecastService.CoordinatorConfig{
			MaxRadiusKm: cfg.Backend.MaxRadius,
		},
	)

	controlSet := controls.NewControls(coordinator, renderer, logger.Named("controls"), controls.Config{
		DefaultQuery: forecast.Query{
			Lat:      cfg.Backend.DefaultLat,
			Lng:      cfg.Backend.DefaultLng,
			RadiusKm: cfg.Backend.DefaultRadius,
		},
		RefetchOnFilterChange: cfg.Render.RefetchOnFilter,
	})

	// Initialize station registry
	registry, err := stationService.NewRegistry(ctx, stationStore)
	if err != nil {
		return err
	}

	// Initialize agent panel
	var responder agent.Responder = llm.DisabledResponder{}
	gemma, err := llm.NewGemmaResponder(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
	switch {
	case err == nil:
		responder = gemma
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Info("LLM_API_KEY not set, assistant questions are disabled")
	default:
		logger.Warn("Failed to create language model client", zap.Error(err))
	}

	panel, err := agentService.NewPanel(eventBus, responder, renderer, logger.Named("agent"), agentService.PanelConfig{
		MaxMessages: cfg.Panel.MaxMessages,
	})
	if err != nil {
		return err
	}
	defer panel.Close()

	// Initialize health monitor
	monitor := healthService.NewMonitor(
		backend.NewProber(cfg.Health.ProbeTimeout),
		eventBus,
		logger.Named("health"),
		healthService.MonitorConfig{
			PollInterval: cfg.Health.PollInterval,
			ProbeTimeout: cfg.Health.ProbeTimeout,
		},
		healthService.Target{Name: "backend", URL: backend.HealthURL(cfg.Backend.BaseURL)},
		healthService.Target{Name: "llm", URL: cfg.LLM.HealthURL},
	)

	// Initialize HTTP server
	httpServer := server.NewServer(
		cfg.Server,
		cfg.Station,
		logger,
		eventBus,
		controlSet,
		renderer,
		history,
		registry,
		panel,
		monitor,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return monitor.Start(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("host", cfg.Server.Host), zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Initial load of the default area
	g.Go(func() error {
		if _, err := controlSet.Apply(gctx, controls.Action{Type: controls.Refresh}); err != nil && !errors.Is(err, forecast.ErrSuperseded) {
			logger.Warn("Initial forecast load failed", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down services...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", zap.Error(err))
		}
		if err := monitor.Stop(shutdownCtx); err != nil {
			logger.Warn("Health monitor shutdown error", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("orcast"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
