package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/mqttscope/internal/message"
	"github.com/nerrad567/mqttscope/internal/session"
)

// Config is the root configuration structure for mqttscope.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging     LoggingConfig               `yaml:"logging"`
	API         APIConfig                   `yaml:"api"`
	WebSocket   WebSocketConfig             `yaml:"websocket"`
	Store       StoreConfig                 `yaml:"store"`
	InfluxDB    InfluxDBConfig              `yaml:"influxdb"`
	Connections []session.ConnectionProfile `yaml:"connections"`
	Startup     StartupConfig               `yaml:"startup"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// StoreConfig bounds the in-memory model.
type StoreConfig struct {
	MaxMessages int `yaml:"max_messages"`
	MaxPerTopic int `yaml:"max_per_topic"` // 0 disables the per-topic ceiling
	MaxLogLines int `yaml:"max_log_lines"`
	StatsWindow int `yaml:"stats_window"` // seconds of throughput history
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	// Echo prints per-connection activity lines to the terminal.
	Echo bool `yaml:"echo"`
}

// StartupConfig lists what to do once the process is up.
type StartupConfig struct {
	// Connect holds connection ids to connect at boot.
	Connect []string `yaml:"connect"`

	// Subscriptions are requested per connection id once it is connected.
	Subscriptions map[string][]SubscriptionConfig `yaml:"subscriptions"`
}

// SubscriptionConfig is one topic filter to subscribe at startup.
type SubscriptionConfig struct {
	Topic string `yaml:"topic"`
	QoS   int    `yaml:"qos"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTSCOPE_SECTION_KEY
// For example: MQTTSCOPE_API_PORT, MQTTSCOPE_LOG_LEVEL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
			Echo:   true,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8420,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Store: StoreConfig{
			MaxMessages: 50000,
			MaxPerTopic: 1000,
			MaxLogLines: 1000,
			StatsWindow: 60,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MQTTSCOPE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Logging
	if v := os.Getenv("MQTTSCOPE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MQTTSCOPE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// API
	if v := os.Getenv("MQTTSCOPE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("MQTTSCOPE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Store
	if v := os.Getenv("MQTTSCOPE_STORE_MAX_MESSAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.MaxMessages = n
		}
	}

	// InfluxDB
	if v := os.Getenv("MQTTSCOPE_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("MQTTSCOPE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q must be debug, info, warn or error", c.Logging.Level))
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls requires cert_file and key_file")
	}

	// Store validation
	if c.Store.MaxMessages < 1 {
		errs = append(errs, "store.max_messages must be positive")
	}
	if c.Store.MaxPerTopic < 0 {
		errs = append(errs, "store.max_per_topic must not be negative")
	}
	if c.Store.MaxLogLines < 1 {
		errs = append(errs, "store.max_log_lines must be positive")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	// Connection profiles
	seen := make(map[string]bool, len(c.Connections))
	for i, p := range c.Connections {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("connections[%d]: %v", i, err))
		}
		if p.ID != "" && seen[p.ID] {
			errs = append(errs, fmt.Sprintf("connections[%d]: duplicate id %q", i, p.ID))
		}
		seen[p.ID] = true
	}

	// Startup references
	for _, id := range c.Startup.Connect {
		if !seen[id] {
			errs = append(errs, fmt.Sprintf("startup.connect: unknown connection %q", id))
		}
	}
	for id, subs := range c.Startup.Subscriptions {
		if !seen[id] {
			errs = append(errs, fmt.Sprintf("startup.subscriptions: unknown connection %q", id))
		}
		for _, sub := range subs {
			if err := message.ValidateTopicFilter(sub.Topic); err != nil {
				errs = append(errs, fmt.Sprintf("startup.subscriptions[%s]: %v", id, err))
			}
			if _, err := message.ParseQoS(sub.QoS); err != nil {
				errs = append(errs, fmt.Sprintf("startup.subscriptions[%s]: qos must be 0, 1, or 2", id))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Profile returns the configured connection profile with id.
func (c *Config) Profile(id string) (session.ConnectionProfile, bool) {
	for _, p := range c.Connections {
		if p.ID == id {
			return p, true
		}
	}
	return session.ConnectionProfile{}, false
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
