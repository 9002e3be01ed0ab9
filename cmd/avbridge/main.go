// AV Bridge Core - Scenario Orchestration Engine
//
// This is the main entry point for the AV bridge. It wires together the
// device registry, command dispatcher, scenario executor and the MQTT,
// HTTP and WebSocket surfaces that expose them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/avbridge/avbridge-core/migrations"

	"github.com/avbridge/avbridge-core/internal/api"
	"github.com/avbridge/avbridge-core/internal/control"
	"github.com/avbridge/avbridge-core/internal/device"
	"github.com/avbridge/avbridge-core/internal/dispatch"
	"github.com/avbridge/avbridge-core/internal/infrastructure/config"
	"github.com/avbridge/avbridge-core/internal/infrastructure/database"
	"github.com/avbridge/avbridge-core/internal/infrastructure/logging"
	"github.com/avbridge/avbridge-core/internal/infrastructure/mqtt"
	"github.com/avbridge/avbridge-core/internal/infrastructure/telemetry"
	"github.com/avbridge/avbridge-core/internal/scenario"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting AV Bridge Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "bridge", cfg.Bridge.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Initialise device registry. Device drivers publish commands through
	// the shared MQTT client.
	deviceRepo := device.NewSQLiteRepository(db)
	deviceRegistry := device.NewRegistry(deviceRepo, device.BuiltinFactories(), device.FactoryDeps{
		Publisher: mqttClient,
		Logger:    log,
	})
	deviceRegistry.SetLogger(log)

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.DeviceCount())

	// Initialise scenario registry
	scenarioRepo := scenario.NewSQLiteRepository(db)
	scenarioRegistry := scenario.NewRegistry(scenarioRepo)
	scenarioRegistry.SetLogger(log)

	if refreshErr := scenarioRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading scenario registry: %w", refreshErr)
	}
	log.Info("scenario registry initialised", "scenarios", scenarioRegistry.Count())

	// Command dispatch: single state store, per-device serialisation
	stateStore := dispatch.NewStateStore()
	dispatcher := dispatch.NewDispatcher(deviceRegistry, stateStore, cfg.GetCommandTimeout())
	dispatcher.SetLogger(log)

	// Connect to InfluxDB step telemetry (optional)
	var telemetryClient *telemetry.Client
	if cfg.Telemetry.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to telemetry: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		log.Info("telemetry connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)

		telemetryClient.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
	} else {
		log.Info("telemetry disabled")
	}

	// Scenario executor: the single orchestrator of room sequences
	executor := scenario.NewExecutor(scenarioRegistry, deviceRegistry, dispatcher, stateStore)
	executor.SetLogger(log)
	executor.SetReportSink(scenarioRepo)
	if telemetryClient != nil {
		executor.SetRecorder(telemetryClient)
	}

	// Room events fan out to both WebSocket clients and retained MQTT
	// status topics.
	hub := api.NewHub(cfg.WebSocket, log)
	statusPublisher := control.NewStatusPublisher(mqttClient)
	statusPublisher.SetLogger(log)
	executor.SetEvents(&eventFanout{sinks: []scenario.EventSink{hub, statusPublisher}})

	// Start HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Logger:       log,
		Devices:      deviceRegistry,
		Scenarios:    scenarioRegistry,
		Executor:     executor,
		Dispatcher:   dispatcher,
		ScenarioRepo: scenarioRepo,
		ExternalHub:  hub,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Start MQTT control binding (room activation, role commands, driver
	// state ingestion)
	binding := control.NewBinding(mqttClient, executor, dispatcher)
	binding.SetLogger(log)
	binding.SetStateObserver(hub)
	if startErr := binding.Start(); startErr != nil {
		return fmt.Errorf("starting control binding: %w", startErr)
	}
	defer func() {
		log.Info("stopping control binding")
		binding.Stop()
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, telemetryClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Control binding (drains in-flight sequences)
	// 2. API server
	// 3. Telemetry (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("AV Bridge Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AVBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AVBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The telemetry client may be nil if disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, telemetryClient *telemetry.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if telemetryClient != nil {
		if err := telemetryClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

// eventFanout delivers executor events to multiple sinks. Sinks are
// non-blocking (WebSocket trySend, buffered MQTT publish), so sequential
// delivery is fine.
type eventFanout struct {
	sinks []scenario.EventSink
}

// RoomPhaseChanged implements scenario.EventSink.
func (f *eventFanout) RoomPhaseChanged(state scenario.RoomState) {
	for _, s := range f.sinks {
		s.RoomPhaseChanged(state)
	}
}

// RunCompleted implements scenario.EventSink.
func (f *eventFanout) RunCompleted(report scenario.RunReport) {
	for _, s := range f.sinks {
		s.RunCompleted(report)
	}
}
