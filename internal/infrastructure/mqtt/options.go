package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// DefaultConnectTimeout is the transport-level connect timeout.
	DefaultConnectTimeout = 30 * time.Second

	// defaultOperationTimeout bounds subscribe/unsubscribe/publish when the
	// caller's context carries no deadline.
	defaultOperationTimeout = 10 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// websocketPath is appended to ws/wss broker URLs.
	websocketPath = "/mqtt"
)

// Protocol levels understood by paho.
const (
	ProtocolV31  uint = 3
	ProtocolV311 uint = 4
)

// Options configures a single Transport.
type Options struct {
	// URL is the broker address including scheme, e.g. mqtts://broker:8883.
	URL string

	ClientID     string
	Username     string
	Password     string
	CleanSession bool

	// KeepAlive is the PINGREQ period. Zero disables keep-alive.
	KeepAlive time.Duration

	// ProtocolVersion is 3 (MQTT 3.1) or 4 (MQTT 3.1.1). Zero lets paho negotiate.
	ProtocolVersion uint

	// TLS is used for mqtts and wss URLs. Nil means system defaults.
	TLS *tls.Config

	Will *Will

	// AutoReconnect enables paho's reconnect loop after a connection is lost.
	// Paho backs off from one second, doubling up to ReconnectInterval.
	AutoReconnect     bool
	ReconnectInterval time.Duration

	ConnectTimeout time.Duration

	// Logger receives handler panics. Optional.
	Logger Logger
}

// Will is the last-will message registered with the broker on connect.
type Will struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// TLSFiles names the certificate material for a TLS connection.
type TLSFiles struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool
}

// BrokerURL formats the broker address for a transport kind
// (tcp, tls, ws or wss). Unknown kinds fall back to plain mqtt.
func BrokerURL(kind, host string, port int) string {
	scheme := "mqtt"
	path := ""
	switch kind {
	case "tls":
		scheme = "mqtts"
	case "ws":
		scheme = "ws"
		path = websocketPath
	case "wss":
		scheme = "wss"
		path = websocketPath
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, host, port, path)
}

// BuildTLSConfig loads the CA bundle and client key pair named in files.
// Empty paths are skipped.
func BuildTLSConfig(files TLSFiles) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion: tlsMinVersion,
		//nolint:gosec // Operator opt-in via rejectUnauthorized=false
		InsecureSkipVerify: files.InsecureSkipVerify,
	}

	if files.CAFile != "" {
		pem, err := os.ReadFile(files.CAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: reading CA file: %w", ErrInvalidOptions, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates found in %s", ErrInvalidOptions, files.CAFile)
		}
		cfg.RootCAs = pool
	}

	if files.CertFile != "" || files.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: loading client certificate: %w", ErrInvalidOptions, err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// buildClientOptions creates paho options from Options.
//
// This configures:
//   - Broker URL and client identification
//   - Authentication credentials (if provided)
//   - Clean session and keep-alive
//   - Reconnect behaviour (initial connect is never retried by paho)
//   - TLS configuration and last will
func buildClientOptions(o Options) (*pahomqtt.ClientOptions, error) {
	if o.URL == "" {
		return nil, fmt.Errorf("%w: broker URL is required", ErrInvalidOptions)
	}
	if _, err := url.Parse(o.URL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(o.URL)
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(o.CleanSession)

	keepAlive := o.KeepAlive
	if keepAlive < 0 {
		keepAlive = 0
	}
	opts.SetKeepAlive(keepAlive)

	if o.ProtocolVersion != 0 {
		opts.SetProtocolVersion(o.ProtocolVersion)
	}

	// The session owns the connect deadline and reports failure itself.
	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(o.AutoReconnect && o.ReconnectInterval > 0)
	if o.ReconnectInterval > 0 {
		opts.SetMaxReconnectInterval(o.ReconnectInterval)
	}

	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	opts.SetConnectTimeout(timeout)

	// Inbound messages are handed over one at a time in arrival order.
	opts.SetOrderMatters(true)

	if o.TLS != nil {
		opts.SetTLSConfig(o.TLS)
	}

	if o.Will != nil && o.Will.Topic != "" {
		if o.Will.QoS > maxQoS {
			return nil, fmt.Errorf("%w: will %w", ErrInvalidOptions, ErrInvalidQoS)
		}
		opts.SetBinaryWill(o.Will.Topic, o.Will.Payload, o.Will.QoS, o.Will.Retain)
	}

	return opts, nil
}
