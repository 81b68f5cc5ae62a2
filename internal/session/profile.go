package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/mqttscope/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttscope/internal/message"
)

// TransportKind selects how a profile reaches its broker.
type TransportKind string

const (
	TransportTCP TransportKind = "tcp"
	TransportTLS TransportKind = "tls"
	TransportWS  TransportKind = "ws"
	TransportWSS TransportKind = "wss"
)

// Protocol versions a profile may request.
const (
	ProtocolV31  = "3.1"
	ProtocolV311 = "3.1.1"
	ProtocolV5   = "5.0"
)

// clientIDPrefix prefixes auto-generated client ids.
const clientIDPrefix = "mqttscope-"

// LastWill is the message the broker publishes if the connection drops uncleanly.
type LastWill struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Topic   string      `yaml:"topic" json:"topic"`
	Payload string      `yaml:"payload" json:"payload"`
	QoS     message.QoS `yaml:"qos" json:"qos"`
	Retain  bool        `yaml:"retain" json:"retain"`
}

// ConnectionProfile is the identity and configuration for one broker endpoint.
//
// KeepAlive is in seconds and ReconnectInterval in milliseconds.
type ConnectionProfile struct {
	ID                   string        `yaml:"id" json:"id"`
	Name                 string        `yaml:"name" json:"name"`
	Host                 string        `yaml:"host" json:"host"`
	Port                 int           `yaml:"port" json:"port"`
	Transport            TransportKind `yaml:"transport" json:"transport"`
	ProtocolVersion      string        `yaml:"protocol_version" json:"protocol_version"`
	ClientID             string        `yaml:"client_id" json:"client_id"`
	AutoGenerateClientID bool          `yaml:"auto_generate_client_id" json:"auto_generate_client_id"`
	Username             string        `yaml:"username" json:"username"`
	Password             string        `yaml:"password" json:"password,omitempty"`
	UseTLS               bool          `yaml:"use_tls" json:"use_tls"`
	CAFile               string        `yaml:"ca_file" json:"ca_file"`
	CertFile             string        `yaml:"cert_file" json:"cert_file"`
	KeyFile              string        `yaml:"key_file" json:"key_file"`
	RejectUnauthorized   bool          `yaml:"reject_unauthorized" json:"reject_unauthorized"`
	CleanSession         bool          `yaml:"clean_session" json:"clean_session"`
	KeepAlive            int           `yaml:"keep_alive" json:"keep_alive"`
	LastWill             LastWill      `yaml:"last_will" json:"last_will"`
	AutoReconnect        bool          `yaml:"auto_reconnect" json:"auto_reconnect"`
	ReconnectInterval    int           `yaml:"reconnect_interval" json:"reconnect_interval"`
	Color                string        `yaml:"color" json:"color"`
	CreatedAt            time.Time     `yaml:"created_at,omitempty" json:"created_at"`
	UpdatedAt            time.Time     `yaml:"updated_at,omitempty" json:"updated_at"`
}

// DefaultProfile returns a profile for a local plain-TCP broker with the
// defaults applied to every new connection. ID and Name are left empty.
func DefaultProfile() ConnectionProfile {
	return ConnectionProfile{
		Host:                 "localhost",
		Port:                 1883,
		Transport:            TransportTCP,
		ProtocolVersion:      ProtocolV311,
		AutoGenerateClientID: true,
		RejectUnauthorized:   true,
		CleanSession:         true,
		KeepAlive:            60,
		AutoReconnect:        true,
		ReconnectInterval:    5000,
		Color:                "#58a6ff",
	}
}

// NewProfileID returns a fresh unique profile id.
func NewProfileID() string {
	return uuid.NewString()
}

// UnmarshalYAML overlays the decoded fields on DefaultProfile, so a
// profile in a config file only needs the fields that differ.
func (p *ConnectionProfile) UnmarshalYAML(value *yaml.Node) error {
	type plain ConnectionProfile
	out := plain(DefaultProfile())
	if err := value.Decode(&out); err != nil {
		return err
	}
	*p = ConnectionProfile(out)
	return nil
}

// Validate checks the profile and reports every problem found.
func (p ConnectionProfile) Validate() error {
	var errs []string

	if p.ID == "" {
		errs = append(errs, "id is required")
	}
	if p.Host == "" {
		errs = append(errs, "host is required")
	}
	if p.Port < 1 || p.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	switch p.Transport {
	case TransportTCP, TransportTLS, TransportWS, TransportWSS:
	default:
		errs = append(errs, fmt.Sprintf("transport %q must be tcp, tls, ws or wss", p.Transport))
	}
	switch p.ProtocolVersion {
	case "", ProtocolV31, ProtocolV311, ProtocolV5:
	default:
		errs = append(errs, fmt.Sprintf("protocol_version %q must be 3.1, 3.1.1 or 5.0", p.ProtocolVersion))
	}
	if !p.AutoGenerateClientID && p.ClientID == "" {
		errs = append(errs, "client_id is required when auto_generate_client_id is false")
	}
	if p.KeepAlive < 0 {
		errs = append(errs, "keep_alive must not be negative")
	}
	if p.ReconnectInterval < 0 {
		errs = append(errs, "reconnect_interval must not be negative")
	}
	if p.LastWill.Enabled {
		if err := message.ValidateTopicName(p.LastWill.Topic); err != nil {
			errs = append(errs, "last_will.topic must be a valid topic name")
		}
		if !p.LastWill.QoS.Valid() {
			errs = append(errs, "last_will.qos must be 0, 1, or 2")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(errs, "; "))
	}
	return nil
}

// BrokerURL is the address the profile dials.
func (p ConnectionProfile) BrokerURL() string {
	return mqtt.BrokerURL(string(p.effectiveTransport()), p.Host, p.Port)
}

// usesTLS reports whether a TLS handshake is part of the connection.
func (p ConnectionProfile) usesTLS() bool {
	return p.UseTLS || p.Transport == TransportTLS || p.Transport == TransportWSS
}

// effectiveTransport upgrades plain transports when UseTLS is set.
func (p ConnectionProfile) effectiveTransport() TransportKind {
	if !p.UseTLS {
		return p.Transport
	}
	switch p.Transport {
	case TransportTCP, "":
		return TransportTLS
	case TransportWS:
		return TransportWSS
	default:
		return p.Transport
	}
}

// GenerateClientID returns a fresh client id for an auto-generated connect.
func GenerateClientID() string {
	return clientIDPrefix + uuid.NewString()[:8]
}

// protocolLevel maps a protocol version name to the level paho speaks.
// 5.0 is not available on this engine and is downgraded to 3.1.1; ok is
// false in that case so the caller can warn.
func protocolLevel(version string) (level uint, ok bool) {
	switch version {
	case ProtocolV31:
		return mqtt.ProtocolV31, true
	case ProtocolV5:
		return mqtt.ProtocolV311, false
	default:
		return mqtt.ProtocolV311, true
	}
}

// transportOptions turns a profile into options for one connect attempt.
// warnings are human-readable notes for the connection log.
func transportOptions(p ConnectionProfile, clientID string) (opts mqtt.Options, warnings []string, err error) {
	level, ok := protocolLevel(p.ProtocolVersion)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("MQTT %s is not supported by this client; connecting with 3.1.1", p.ProtocolVersion))
	}

	opts = mqtt.Options{
		URL:               p.BrokerURL(),
		ClientID:          clientID,
		Username:          p.Username,
		Password:          p.Password,
		CleanSession:      p.CleanSession,
		KeepAlive:         time.Duration(p.KeepAlive) * time.Second,
		ProtocolVersion:   level,
		AutoReconnect:     p.AutoReconnect,
		ReconnectInterval: time.Duration(p.ReconnectInterval) * time.Millisecond,
		ConnectTimeout:    mqtt.DefaultConnectTimeout,
	}

	if p.usesTLS() {
		tlsCfg, tlsErr := mqtt.BuildTLSConfig(mqtt.TLSFiles{
			CAFile:             p.CAFile,
			CertFile:           p.CertFile,
			KeyFile:            p.KeyFile,
			InsecureSkipVerify: !p.RejectUnauthorized,
		})
		if tlsErr != nil {
			return mqtt.Options{}, warnings, tlsErr
		}
		opts.TLS = tlsCfg
	}

	if p.LastWill.Enabled && p.LastWill.Topic != "" {
		opts.Will = &mqtt.Will{
			Topic:   p.LastWill.Topic,
			Payload: []byte(p.LastWill.Payload),
			QoS:     byte(p.LastWill.QoS),
			Retain:  p.LastWill.Retain,
		}
	}

	return opts, warnings, nil
}
