// mqttscope - multi-connection MQTT explorer
//
// This is the main entry point for the mqttscope core. It loads the
// configuration, opens the configured broker connections and serves the
// HTTP/WebSocket surface an explorer UI is built on:
//   - Any number of concurrent broker connections
//   - A bounded, filterable message log with a live topic tree
//   - Operator publishes validated against their declared format
//
// Per-connection activity is echoed to the terminal when logging.echo is set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/mqttscope/internal/api"
	"github.com/nerrad567/mqttscope/internal/infrastructure/config"
	"github.com/nerrad567/mqttscope/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqttscope/internal/infrastructure/logging"
	"github.com/nerrad567/mqttscope/internal/message"
	"github.com/nerrad567/mqttscope/internal/session"
	"github.com/nerrad567/mqttscope/internal/workspace"
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

// shutdownTimeout bounds the graceful disconnect of every session.
const shutdownTimeout = 10 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting mqttscope",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	opts := []workspace.Option{workspace.WithLogger(log)}
	var metrics api.HealthChecker

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		opts = append(opts, workspace.WithMetrics(influxClient))
		metrics = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	ws := workspace.New(cfg.Store, opts...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := ws.Close(closeCtx); closeErr != nil {
			log.Error("error closing workspace", "error", closeErr)
		}
	}()

	if cfg.Logging.Echo {
		attachEcho(ws, cfg.Connections)
	}

	for _, p := range cfg.Connections {
		if _, saveErr := ws.SaveProfile(p); saveErr != nil {
			return fmt.Errorf("saving connection %q: %w", p.ID, saveErr)
		}
	}
	log.Info("connection profiles loaded", "count", len(cfg.Connections))

	sampleCtx, stopSampling := context.WithCancel(ctx)
	defer stopSampling()
	go ws.Run(sampleCtx)

	// Start API server (optional)
	if cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Logger:    log,
			Workspace: ws,
			Version:   version,
			Metrics:   metrics,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	startup(ctx, cfg.Startup, ws, log)

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, disconnecting",
		"connected", ws.Stats().Connected,
	)

	disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ws.DisconnectAll(disconnectCtx); err != nil {
		log.Warn("error disconnecting sessions", "error", err)
	}

	// Deferred calls run in reverse order:
	// 1. API server (if enabled)
	// 2. Throughput sampler
	// 3. Workspace
	// 4. InfluxDB (if enabled)

	log.Info("mqttscope stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MQTTSCOPE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MQTTSCOPE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// attachEcho prints every per-connection log line to stdout, labelled with
// the profile name.
func attachEcho(ws *workspace.Workspace, profiles []session.ConnectionProfile) {
	echo := logging.NewEcho(os.Stdout)
	for _, p := range profiles {
		echo.SetName(p.ID, p.Name)
	}
	ws.AddListener(func(ev session.Event) {
		if ev.Kind == session.EventLog {
			echo.Line(ev.ConnectionID, ev.Log)
		}
	})
}

// startup connects the configured connections and requests their initial
// subscriptions. A broker that cannot be reached is reported and skipped;
// it stays saved and can be connected later through the API.
func startup(ctx context.Context, cfg config.StartupConfig, ws *workspace.Workspace, log *logging.Logger) {
	for _, id := range cfg.Connect {
		if err := ws.Connect(ctx, id); err != nil {
			log.Warn("startup connect failed", "connection_id", id, "error", err)
			continue
		}
		log.Info("startup connection established", "connection_id", id)

		for _, sub := range cfg.Subscriptions[id] {
			qos, err := message.ParseQoS(sub.QoS)
			if err != nil {
				log.Warn("startup subscription skipped", "connection_id", id, "topic", sub.Topic, "error", err)
				continue
			}
			if err := ws.Subscribe(ctx, id, sub.Topic, qos); err != nil {
				log.Warn("startup subscribe failed", "connection_id", id, "topic", sub.Topic, "error", err)
			}
		}
	}
}
