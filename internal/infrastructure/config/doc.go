// Package config handles loading and validating mqttscope configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields, including every connection profile
//   - Default value handling
//
// Connection profiles are the only configuration a session sees. Fields a
// profile omits take the values of session.DefaultProfile.
//
// Security Considerations:
//   - Broker passwords and the InfluxDB token should be set via environment
//     variables or a config file with restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, p := range cfg.Connections {
//	    fmt.Println(p.Name, p.BrokerURL())
//	}
package config
