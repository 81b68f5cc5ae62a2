// Package logging provides structured logging for mqttscope.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured process logging, and renders the per-connection
// activity log for a terminal.
//
// # Features
//
//   - JSON output for machine consumption, text output for humans
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Echo: colored one-line rendering of connection log lines
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//	  echo: true         # print connection activity to stdout
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("api listening", "port", 8420)
//
//	echo := logging.NewEcho(os.Stdout)
//	echo.SetName(profile.ID, profile.Name)
//	echo.Line(ev.ConnectionID, ev.Log)
//
// # Security
//
// Never log broker passwords or the InfluxDB token.
package logging
