// Package config handles loading and validating SMS Bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (gateway API key, MQTT credentials, InfluxDB token)
//     should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The webhook id acts as a shared secret in the ingress URL
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Gateway.BaseURL)
package config
