// Thingy Gateway
//
// This is the main entry point for the Thingy Gateway. The gateway collects
// sensor telemetry and button events from Thingy devices, stores each
// device's setup, and drives its LED. Devices talk to it over HTTP or MQTT;
// browsers follow LED changes over Server-Sent Events or WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/thingy-gateway/migrations"

	"github.com/nerrad567/thingy-gateway/internal/api"
	"github.com/nerrad567/thingy-gateway/internal/bridge"
	"github.com/nerrad567/thingy-gateway/internal/device"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/broker"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/config"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/database"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled and returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Thingy Gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Device core
	registry := device.NewRegistry()
	registry.SetLogger(log)
	setups := device.NewConfigStore(registry)
	ingest := device.NewIngestionService(registry)
	actuators := device.NewActuatorController(registry)
	broadcaster := device.NewBroadcaster(actuators, cfg.Stream.QueueSize)
	broadcaster.SetLogger(log)
	defer broadcaster.CloseAll()

	var checks []healthCheckTarget

	// Open database (optional)
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, database.Config{
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

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		stopWriter, persistErr := startPersistence(ctx, db, registry, setups, log)
		if persistErr != nil {
			return persistErr
		}
		defer stopWriter()

		checks = append(checks, healthCheckTarget{name: "database", target: db})
	} else {
		log.Info("database disabled, device state is memory-only")
	}

	// Start embedded MQTT broker (optional)
	if cfg.MQTT.Embedded.Enabled {
		mqttBroker, brokerErr := broker.New(cfg.MQTT.Embedded, cfg.MQTT.Auth, log.Logger)
		if brokerErr != nil {
			return fmt.Errorf("creating embedded broker: %w", brokerErr)
		}
		if startErr := mqttBroker.Start(); startErr != nil {
			return fmt.Errorf("starting embedded broker: %w", startErr)
		}
		defer func() {
			log.Info("stopping embedded broker")
			if closeErr := mqttBroker.Close(); closeErr != nil {
				log.Error("error stopping embedded broker", "error", closeErr)
			}
		}()
		log.Info("embedded broker listening", "address", mqttBroker.Address())
	}

	// Connect to MQTT and start the device bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Gateway.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		deviceBridge, bridgeErr := startBridge(ctx, cfg, mqttClient, registry, setups, ingest, actuators, log)
		if bridgeErr != nil {
			return bridgeErr
		}
		defer func() {
			log.Info("stopping device bridge")
			deviceBridge.Stop()
		}()

		checks = append(checks, healthCheckTarget{name: "mqtt", target: mqttClient})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		registry.AddObserver(influxClient)

		checks = append(checks, healthCheckTarget{name: "influxdb", target: influxClient})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start HTTP API
	deps := api.Deps{
		Config:      cfg.API,
		Stream:      cfg.Stream,
		Logger:      log,
		Registry:    registry,
		Setups:      setups,
		Ingest:      ingest,
		Actuators:   actuators,
		Broadcaster: broadcaster,
		Version:     version,
	}
	// Interface fields stay nil for disabled backends.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
	}
	if db != nil {
		deps.DB = db
	}

	apiServer, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	checks = append(checks, healthCheckTarget{name: "api", target: apiServer})

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, InfluxDB, bridge, MQTT,
	// embedded broker, state writer flush, database, then streams.

	log.Info("Thingy Gateway stopped")
	return nil
}

// loadConfig reads the config file. A missing file at the default path is
// not an error: the built-in defaults are used instead.
func loadConfig() (*config.Config, string, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default()
		return cfg, "(defaults)", err
	}
	return nil, path, err
}

// getConfigPath returns the configuration file path.
// Uses THINGY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("THINGY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startPersistence restores saved device state and attaches the write path.
// The returned function stops the LED writer; its final flush completes
// before the function returns.
func startPersistence(ctx context.Context, db *database.DB, registry *device.Registry, setups *device.ConfigStore, log *logging.Logger) (func(), error) {
	repo := device.NewSQLiteRepository(db.DB)
	if err := registry.Restore(ctx, repo); err != nil {
		return nil, fmt.Errorf("restoring device state: %w", err)
	}

	setups.SetRepository(repo)

	writer := device.NewStateWriter(repo)
	writer.SetLogger(log)
	registry.AddObserver(writer)

	// The writer outlives ctx so the final flush still reaches the database.
	writerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		writer.Run(writerCtx)
	}()

	return func() {
		log.Info("stopping LED state writer", "pending", writer.Pending())
		cancel()
		<-done
	}, nil
}

// startBridge wires the MQTT device topics to the device core.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	client *mqtt.Client,
	registry *device.Registry,
	setups *device.ConfigStore,
	ingest *device.IngestionService,
	actuators *device.ActuatorController,
	log *logging.Logger,
) (*bridge.Bridge, error) {
	b, err := bridge.New(bridge.Options{
		MQTT:      client,
		Topics:    client.Topics(),
		QoS:       byte(cfg.MQTT.QoS), //nolint:gosec // Validated 0-2 in config
		Ingest:    ingest,
		Setups:    setups,
		Actuators: actuators,
		Logger:    log.With("component", "bridge"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating device bridge: %w", err)
	}

	registry.AddObserver(b)
	if err := b.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting device bridge: %w", err)
	}

	// Retained topics are republished after every reconnect so a broker
	// that lost its store converges again.
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		b.Resync()
	})
	b.Resync()

	log.Info("device bridge started", "prefix", client.Topics().Prefix())
	return b, nil
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type healthCheckTarget struct {
	name   string
	target healthChecker
}

// healthCheck verifies every started component. It returns the first
// failure.
func healthCheck(ctx context.Context, checks []healthCheckTarget) error {
	for _, c := range checks {
		if err := c.target.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}
