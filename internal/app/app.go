package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"aquadash/internal/bridge"
	"aquadash/internal/config"
	"aquadash/internal/database"
	"aquadash/internal/fanout"
	httpapi "aquadash/internal/http"
	"aquadash/internal/mqtt"
	"aquadash/internal/repository"
	"aquadash/internal/series"
	"aquadash/internal/service"
)

// App owns every component of the dashboard backend and wires them together:
// MQTT ingestion into PostgreSQL, the Redis live backplane, the websocket hub
// and the HTTP API.
type App struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	bridge      *bridge.Bridge
	hub         *fanout.Hub
	watchdog    *series.Watchdog
	server      *service.Server

	cancel context.CancelFunc
}

// NewApp connects the external systems and assembles the components. Nothing
// starts consuming until Start.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	telemetryRepo := repository.NewPostgresTelemetryRepository(db, logger)
	settingsRepo := repository.NewPostgresSettingsRepository(db, logger)

	publisher := fanout.NewRedisPublisher(redisClient, cfg.Bridge.LiveChannel, logger)
	hub := fanout.NewHub(logger)

	watchdog := series.NewWatchdog(cfg.Bridge.StallThreshold, cfg.Bridge.StallCheckInterval)
	watchdog.OnChange = func(stalled bool) {
		if stalled {
			logger.Warn("Telemetry feed stalled",
				zap.Duration("threshold", cfg.Bridge.StallThreshold))
		} else {
			logger.Info("Telemetry feed recovered")
		}
	}

	ingest := bridge.New(cfg, mqttClient, telemetryRepo, settingsRepo, publisher, watchdog, logger)

	settingsService := service.NewSettingsService(cfg, settingsRepo, mqttClient, publisher, logger)

	router := httpapi.NewRouter(logger)
	router.RegisterControlRoutes(httpapi.NewControlHandler(settingsService, logger))
	router.RegisterDataRoutes(httpapi.NewDataHandler(telemetryRepo, logger))
	router.RegisterExportRoutes(httpapi.NewExportHandler(telemetryRepo, logger))
	router.RegisterLiveRoutes(hub)
	router.RegisterHealthRoute()

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		bridge:      ingest,
		hub:         hub,
		watchdog:    watchdog,
		server:      service.NewServer(cfg.HTTP.Addr, router, logger),
	}, nil
}

// Start launches the background loops and the ingestion bridge. The HTTP
// server is started separately via Serve so the caller owns its error.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	go a.watchdog.Run(ctx)
	go a.hub.Listen(ctx, a.redisClient, a.config.Bridge.LiveChannel)

	if err := a.bridge.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ingestion bridge: %w", err)
	}

	a.logger.Info("aquadash started",
		zap.String("http_addr", a.config.HTTP.Addr),
		zap.String("mqtt_broker", a.config.MQTT.Broker),
	)
	return nil
}

// Serve runs the HTTP server until it stops.
func (a *App) Serve() error {
	return a.server.Start()
}

// Stop shuts everything down in reverse order of startup.
func (a *App) Stop(ctx context.Context) error {
	a.logger.Info("Stopping aquadash")

	if a.cancel != nil {
		a.cancel()
	}
	if err := a.server.Stop(ctx); err != nil {
		a.logger.Error("Error stopping HTTP server", zap.Error(err))
	}

	a.mqttClient.Disconnect()

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("Error closing Redis client", zap.Error(err))
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Error("Error closing database connection", zap.Error(err))
	}

	a.logger.Info("aquadash stopped")
	return nil
}
