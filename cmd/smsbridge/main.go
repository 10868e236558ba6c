// SMS Bridge reconciles SMS gateway devices into a live local snapshot.
//
// It polls the vendor API for devices and received messages, accepts
// push webhooks, keeps per-device counters and a transient new-message
// pulse, serves the snapshot over HTTP and WebSocket, and optionally
// fans events out to MQTT and InfluxDB.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakmere/smsbridge/internal/api"
	"github.com/oakmere/smsbridge/internal/coordinator"
	"github.com/oakmere/smsbridge/internal/gateway"
	"github.com/oakmere/smsbridge/internal/infrastructure/config"
	"github.com/oakmere/smsbridge/internal/infrastructure/database"
	"github.com/oakmere/smsbridge/internal/infrastructure/influxdb"
	"github.com/oakmere/smsbridge/internal/infrastructure/logging"
	"github.com/oakmere/smsbridge/internal/infrastructure/mqtt"
	"github.com/oakmere/smsbridge/internal/journal"
	"github.com/oakmere/smsbridge/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

// startupPingTimeout bounds the gateway credential check at startup.
const startupPingTimeout = 10 * time.Second

// journalPruneInterval is how often old journal rows are removed.
const journalPruneInterval = 12 * time.Hour

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("smsbridge %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		logging.Default().Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("SMS Bridge starting",
		"version", version,
		"gateway", cfg.Gateway.BaseURL,
		"poll_interval", cfg.GetPollInterval(),
	)

	// SQLite message journal
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	repo := journal.NewSQLiteRepository(db.DB)
	logger.Info("Message journal ready", "path", db.Path())

	// Gateway client and credential check. A rejected API key is fatal;
	// a transient failure just delays the first successful poll.
	client := gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.GetSendTimeout(), logger)

	pingCtx, cancelPing := context.WithTimeout(ctx, startupPingTimeout)
	err = client.Ping(pingCtx)
	cancelPing()
	switch {
	case errors.Is(err, gateway.ErrAuth):
		return fmt.Errorf("gateway credential check: %w", err)
	case err != nil:
		logger.Warn("Gateway unreachable at startup, polling will retry", "error", err)
	default:
		logger.Info("Gateway credential check passed")
	}

	// Optional MQTT integration bus
	var mqttClient *mqtt.Client
	var bus coordinator.EventPublisher
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT broker: %w", err)
		}
		defer mqttClient.Close()
		mqttClient.SetLogger(logger)
		mqttClient.SetOnDisconnect(func(err error) {
			logger.Warn("MQTT connection lost, reconnecting", "error", err)
		})
		mqttClient.SetOnConnect(func() {
			logger.Info("MQTT connection restored")
		})
		bus = mqttClient
		logger.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)
	}

	// Optional InfluxDB telemetry
	var metrics coordinator.Telemetry
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		logger.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
	} else {
		defer influxClient.Close()
		if influxClient.Enabled() {
			influxClient.SetOnError(func(err error) {
				logger.Warn("InfluxDB write error", "error", err)
			})
			metrics = influxClient
			logger.Info("InfluxDB telemetry enabled", "url", cfg.InfluxDB.URL)
		}
	}

	// Aggregate store and coordinator
	st := store.New()
	coord := coordinator.New(st, client, repo, bus, metrics, logger, coordinator.Config{
		PollInterval:    cfg.GetPollInterval(),
		PulseClearDelay: cfg.GetPulseClearDelay(),
		AutoReplyWindow: cfg.GetAutoReplyWindow(),
		DefaultDeviceID: cfg.Gateway.DefaultDeviceID,
	})
	defer coord.StopPulseTimers()

	// Automations can send SMS through the MQTT command topic.
	if mqttClient != nil {
		topic := mqtt.Topics{}.CommandSend()
		err := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), func(_ string, payload []byte) error {
			return coord.HandleSendCommand(ctx, payload)
		})
		if err != nil {
			return fmt.Errorf("subscribing to send commands: %w", err)
		}
	}

	go coord.Run(ctx)

	// Journal retention
	if cfg.Database.RetentionDays > 0 {
		go pruneLoop(ctx, repo, cfg.Database.RetentionDays, logger)
	}

	// HTTP API and WebSocket server
	health := map[string]api.HealthChecker{
		"database": db,
	}
	if mqttClient != nil {
		health["mqtt"] = mqttClient
	}
	if influxClient != nil && influxClient.Enabled() {
		health["influxdb"] = influxClient
	}

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		WebhookID:   cfg.Webhook.ID,
		Logger:      logger,
		Coordinator: coord,
		Journal:     repo,
		Health:      health,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer server.Close() //nolint:errcheck // Shutdown errors already logged by the server

	logger.Info("SMS Bridge ready",
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"webhook_enabled", cfg.Webhook.ID != "",
	)

	<-ctx.Done()
	logger.Info("Shutting down")

	// Let in-flight auto-replies finish before teardown.
	coord.Wait()

	return nil
}

// pruneLoop removes journal rows past the retention window on a fixed
// interval until the context is cancelled.
func pruneLoop(ctx context.Context, repo journal.Repository, retentionDays int, logger *logging.Logger) {
	retention := time.Duration(retentionDays) * 24 * time.Hour
	ticker := time.NewTicker(journalPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.Prune(ctx, retention)
			if err != nil {
				logger.Warn("Journal prune failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("Journal pruned", "rows", deleted, "retention_days", retentionDays)
			}
		}
	}
}
