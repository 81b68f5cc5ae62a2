package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/mqttscope/internal/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
api:
  host: "0.0.0.0"
  port: 9000
store:
  max_messages: 1000
connections:
  - id: local
    name: Local broker
  - id: cloud
    name: Cloud
    host: broker.example.com
    port: 8883
    transport: tls
    username: explorer
    last_will:
      enabled: true
      topic: clients/explorer/status
      payload: offline
      qos: 1
      retain: true
startup:
  connect: [local]
  subscriptions:
    local:
      - topic: "#"
        qos: 0
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Store.MaxMessages != 1000 {
		t.Errorf("Store.MaxMessages = %d, want 1000", cfg.Store.MaxMessages)
	}
	if cfg.Store.MaxPerTopic != 1000 {
		t.Errorf("Store.MaxPerTopic = %d, want default 1000", cfg.Store.MaxPerTopic)
	}
	if len(cfg.Connections) != 2 {
		t.Fatalf("len(Connections) = %d, want 2", len(cfg.Connections))
	}

	local := cfg.Connections[0]
	if local.Host != "localhost" || local.Port != 1883 {
		t.Errorf("local = %s:%d, want profile defaults localhost:1883", local.Host, local.Port)
	}
	if !local.AutoGenerateClientID {
		t.Error("local.AutoGenerateClientID = false, want default true")
	}

	cloud, ok := cfg.Profile("cloud")
	if !ok {
		t.Fatal("Profile(cloud) not found")
	}
	if got := cloud.BrokerURL(); got != "mqtts://broker.example.com:8883" {
		t.Errorf("cloud.BrokerURL() = %q", got)
	}
	if !cloud.LastWill.Enabled || cloud.LastWill.QoS != 1 {
		t.Errorf("cloud.LastWill = %+v", cloud.LastWill)
	}
	if cloud.KeepAlive != 60 {
		t.Errorf("cloud.KeepAlive = %d, want default 60", cloud.KeepAlive)
	}

	if len(cfg.Startup.Subscriptions["local"]) != 1 {
		t.Errorf("Startup.Subscriptions[local] = %v", cfg.Startup.Subscriptions["local"])
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
connections:
  - name: no id
    port: 0
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "connections[0]") {
		t.Errorf("error = %v, want it to name connections[0]", err)
	}
}

func validProfile(id string) session.ConnectionProfile {
	p := session.DefaultProfile()
	p.ID = id
	return p
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Connections = []session.ConnectionProfile{validProfile("a")}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "no connections",
			mutate:  func(c *Config) { c.Connections = nil },
			wantErr: false,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "port ignored when api disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name:    "api tls without files",
			mutate:  func(c *Config) { c.API.TLS.Enabled = true },
			wantErr: true,
		},
		{
			name:    "zero max messages",
			mutate:  func(c *Config) { c.Store.MaxMessages = 0 },
			wantErr: true,
		},
		{
			name:    "negative per topic",
			mutate:  func(c *Config) { c.Store.MaxPerTopic = -1 },
			wantErr: true,
		},
		{
			name:    "influxdb without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name: "duplicate connection id",
			mutate: func(c *Config) {
				c.Connections = append(c.Connections, validProfile("a"))
			},
			wantErr: true,
		},
		{
			name:    "startup connect unknown id",
			mutate:  func(c *Config) { c.Startup.Connect = []string{"zzz"} },
			wantErr: true,
		},
		{
			name: "startup subscription bad filter",
			mutate: func(c *Config) {
				c.Startup.Subscriptions = map[string][]SubscriptionConfig{"a": {{Topic: "a/#/b"}}}
			},
			wantErr: true,
		},
		{
			name: "startup subscription bad qos",
			mutate: func(c *Config) {
				c.Startup.Subscriptions = map[string][]SubscriptionConfig{"a": {{Topic: "a/#", QoS: 3}}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("MQTTSCOPE_LOG_LEVEL", "debug")
	t.Setenv("MQTTSCOPE_API_HOST", "192.168.1.1")
	t.Setenv("MQTTSCOPE_API_PORT", "9100")
	t.Setenv("MQTTSCOPE_STORE_MAX_MESSAGES", "250")
	t.Setenv("MQTTSCOPE_INFLUXDB_URL", "http://influx:8086")
	t.Setenv("MQTTSCOPE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}

	if cfg.Store.MaxMessages != 250 {
		t.Errorf("Store.MaxMessages = %d, want 250", cfg.Store.MaxMessages)
	}

	if cfg.InfluxDB.URL != "http://influx:8086" {
		t.Errorf("InfluxDB.URL = %q", cfg.InfluxDB.URL)
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("MQTTSCOPE_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8420 {
		t.Errorf("API.Port = %d, want default 8420", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.API.Port != 8420 {
		t.Errorf("defaultConfig API.Port = %d, want 8420", cfg.API.Port)
	}

	if cfg.Store.MaxMessages != 50000 || cfg.Store.MaxPerTopic != 1000 {
		t.Errorf("defaultConfig Store = %+v", cfg.Store)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() = %v", err)
	}
}
