package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/nerrad567/boardsync-core/migrations"

	"github.com/nerrad567/boardsync-core/internal/api"
	"github.com/nerrad567/boardsync-core/internal/board"
	"github.com/nerrad567/boardsync-core/internal/bundle"
	"github.com/nerrad567/boardsync-core/internal/events"
	"github.com/nerrad567/boardsync-core/internal/infrastructure/config"
	"github.com/nerrad567/boardsync-core/internal/infrastructure/database"
	"github.com/nerrad567/boardsync-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/boardsync-core/internal/infrastructure/logging"
	"github.com/nerrad567/boardsync-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/boardsync-core/internal/libsync"
	"github.com/nerrad567/boardsync-core/internal/transport"
	"github.com/nerrad567/boardsync-core/internal/transport/ble"
	"github.com/nerrad567/boardsync-core/internal/transport/usb"
	"github.com/nerrad567/boardsync-core/internal/transport/web"
)

// run is the daemon, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Board Sync Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	catalogs, err := newCatalogManager(cfg, db, log)
	if err != nil {
		return err
	}

	channels, err := buildChannels(cfg, log)
	if err != nil {
		return err
	}
	registry := board.NewRegistry(channels, board.Options{
		Interval:       cfg.DiscoveryInterval(),
		SettleDelay:    cfg.SettleDelay(),
		ConnectTimeout: cfg.ConnectTimeout(),
	})
	registry.SetLogger(log.Component("board"))

	syncer := libsync.NewOrchestrator(catalogs)
	syncer.SetLogger(log.Component("libsync"))
	history := libsync.NewHistory(db.DB)
	syncer.SetHistory(history)

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	sinks := []events.Sink{hub}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		// #nosec G115 -- QoS validated to 0-2 by config
		publisher := mqtt.NewEventPublisher(mqttClient, byte(cfg.MQTT.QoS))
		publisher.SetLogger(log.Component("mqtt"))
		// Registered after the client's defer, so it drains first.
		defer publisher.Close()
		sinks = append(sinks, publisher)

		if subErr := mqtt.SubscribeRescan(mqttClient, registry.TryRescan); subErr != nil {
			return fmt.Errorf("subscribing to rescan command: %w", subErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		metrics := influxdb.NewMetrics(influxClient)
		registry.SetObserver(metrics)
		syncer.SetObserver(metrics)
	} else {
		log.Info("InfluxDB disabled")
	}

	sink := events.Multi(sinks...)
	registry.SetSink(sink)
	syncer.SetSink(sink)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Boards:   registry,
			Syncer:   syncer,
			Catalogs: catalogs,
			History:  history,
			Hub:      hub,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if cfg.Transports.USB.Enabled && cfg.Transports.USB.Watch {
		startMountWatcher(ctx, cfg.Transports.USB.MountRoots, registry, log)
	}

	discoveryDone := make(chan struct{})
	go func() {
		defer close(discoveryDone)
		registry.Run(ctx)
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	select {
	case <-discoveryDone:
	case <-time.After(10 * time.Second):
		log.Warn("discovery did not stop in time")
	}

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT publisher, MQTT client, database.
	log.Info("Board Sync Core stopped")
	return nil
}

// newCatalogManager builds the catalog chain: a directory mirror or the
// HTTP mirror, behind the SQLite read-through cache.
func newCatalogManager(cfg *config.Config, db *database.DB, log *logging.Logger) (*bundle.Manager, error) {
	var upstream bundle.Source
	if cfg.Catalog.Directory != "" {
		upstream = bundle.NewDirSource(cfg.Catalog.Directory)
		log.Info("catalog source", "directory", cfg.Catalog.Directory)
	} else {
		httpSrc, err := bundle.NewHTTPSource(cfg.Catalog.URL, time.Duration(cfg.Catalog.Timeout)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("creating catalog source: %w", err)
		}
		upstream = httpSrc
		log.Info("catalog source", "url", cfg.Catalog.URL)
	}

	cached := bundle.NewCachedSource(upstream, db.DB, cfg.CatalogCacheTTL())
	cached.SetLogger(log.Component("bundle"))

	manager := bundle.NewManager(cached)
	manager.SetLogger(log.Component("bundle"))
	return manager, nil
}

// buildChannels returns the enabled transport channels in USB, web, BLE order.
func buildChannels(cfg *config.Config, log *logging.Logger) ([]transport.Channel, error) {
	var channels []transport.Channel

	if cfg.Transports.USB.Enabled {
		ch := usb.NewChannel(cfg.Transports.USB.MountRoots)
		ch.SetLogger(log.Component("usb"))
		channels = append(channels, ch)
	}
	if cfg.Transports.Web.Enabled {
		ch := web.NewChannel(web.Config{
			SeedHost: cfg.Transports.Web.SeedHost,
			Port:     cfg.Transports.Web.Port,
			Username: cfg.Transports.Web.Username,
			Password: cfg.Transports.Web.Password,
			Timeout:  time.Duration(cfg.Transports.Web.Timeout) * time.Second,
		})
		ch.SetLogger(log.Component("web"))
		channels = append(channels, ch)
	}
	if cfg.Transports.BLE.Enabled {
		channels = append(channels, ble.NewChannel())
	}

	if len(channels) == 0 {
		return nil, errors.New("no transport channel enabled")
	}
	return channels, nil
}

// startMountWatcher triggers an incremental rescan whenever a volume
// appears under a mount root. A missing watcher only costs latency, so
// failures are logged rather than returned.
func startMountWatcher(ctx context.Context, roots []string, registry *board.Registry, log *logging.Logger) {
	watcher, err := usb.NewMountWatcher(roots, 0, func(context.Context) {
		if !registry.TryRescan(false) {
			log.Debug("mount change during a running pass")
		}
	})
	if err != nil {
		log.Warn("USB mount watcher disabled", "error", err)
		return
	}
	watcher.SetLogger(log.Component("usb"))

	go func() {
		if runErr := watcher.Run(ctx); runErr != nil {
			log.Warn("USB mount watcher stopped", "error", runErr)
		}
	}()
	log.Info("USB mount watcher started", "roots", roots)
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
