package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SMS Bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Pulse     PulseConfig     `yaml:"pulse"`
	AutoReply AutoReplyConfig `yaml:"autoreply"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GatewayConfig contains SMS gateway vendor API settings.
type GatewayConfig struct {
	// BaseURL is the vendor API root (no trailing slash required).
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates every request via the x-api-key header.
	APIKey string `yaml:"api_key"`

	// PollInterval is the device/message reconciliation interval (seconds).
	PollInterval int `yaml:"poll_interval"`

	// SendTimeout bounds a single outbound API call (seconds).
	SendTimeout int `yaml:"send_timeout"`

	// DefaultDeviceID is the device used for sends when none is given.
	// Empty means "first known device".
	DefaultDeviceID string `yaml:"default_device_id"`
}

// WebhookConfig contains inbound webhook settings.
type WebhookConfig struct {
	// ID is the secret path segment the vendor POSTs to: /webhook/{id}.
	ID string `yaml:"id"`
}

// PulseConfig contains new-message pulse settings.
type PulseConfig struct {
	// ClearDelay is how long the pulse stays raised after ingestion (seconds).
	ClearDelay int `yaml:"clear_delay"`
}

// AutoReplyConfig contains auto-reply throttle settings.
type AutoReplyConfig struct {
	// Window is the per (device, sender) throttle window (minutes).
	Window int `yaml:"window"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Key      string           `yaml:"key"`
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

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite message journal settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionDays is how long journal rows are kept. 0 disables pruning.
	RetentionDays int `yaml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
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
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SMSBRIDGE_SECTION_KEY
// For example: SMSBRIDGE_GATEWAY_API_KEY, SMSBRIDGE_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			BaseURL:      "https://api.textbee.dev/api/v1",
			PollInterval: 15,
			SendTimeout:  15,
		},
		Pulse: PulseConfig{
			ClearDelay: 5,
		},
		AutoReply: AutoReplyConfig{
			Window: 60,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
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
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "smsbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Path:          "./data/smsbridge.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SMSBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("SMSBRIDGE_GATEWAY_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("SMSBRIDGE_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}

	// Webhook
	if v := os.Getenv("SMSBRIDGE_WEBHOOK_ID"); v != "" {
		cfg.Webhook.ID = v
	}

	// API
	if v := os.Getenv("SMSBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SMSBRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("SMSBRIDGE_API_KEY"); v != "" {
		cfg.API.Key = v
	}

	// MQTT
	if v := os.Getenv("SMSBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SMSBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SMSBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("SMSBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("SMSBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation — the API key is the only mandatory credential.
	if c.Gateway.APIKey == "" {
		errs = append(errs, "gateway.api_key is required (set SMSBRIDGE_GATEWAY_API_KEY environment variable)")
	}
	if c.Gateway.BaseURL == "" {
		errs = append(errs, "gateway.base_url is required")
	}
	if c.Gateway.PollInterval < 1 {
		errs = append(errs, "gateway.poll_interval must be at least 1 second")
	}
	if c.Gateway.SendTimeout < 1 {
		errs = append(errs, "gateway.send_timeout must be at least 1 second")
	}

	// Pulse / auto-reply validation
	if c.Pulse.ClearDelay < 1 {
		errs = append(errs, "pulse.clear_delay must be at least 1 second")
	}
	if c.AutoReply.Window < 1 {
		errs = append(errs, "autoreply.window must be at least 1 minute")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the reconciliation poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Gateway.PollInterval) * time.Second
}

// GetSendTimeout returns the outbound API call timeout as a Duration.
func (c *Config) GetSendTimeout() time.Duration {
	return time.Duration(c.Gateway.SendTimeout) * time.Second
}

// GetPulseClearDelay returns the pulse clear delay as a Duration.
func (c *Config) GetPulseClearDelay() time.Duration {
	return time.Duration(c.Pulse.ClearDelay) * time.Second
}

// GetAutoReplyWindow returns the auto-reply throttle window as a Duration.
func (c *Config) GetAutoReplyWindow() time.Duration {
	return time.Duration(c.AutoReply.Window) * time.Minute
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
