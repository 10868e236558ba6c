package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
gateway:
  base_url: "https://api.example.test/api/v1"
  api_key: "test-key"
  poll_interval: 20
webhook:
  id: "hook-abc"
api:
  host: "127.0.0.1"
  port: 9001
database:
  path: "/tmp/test.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.BaseURL != "https://api.example.test/api/v1" {
		t.Errorf("Gateway.BaseURL = %q, want %q", cfg.Gateway.BaseURL, "https://api.example.test/api/v1")
	}
	if cfg.Gateway.PollInterval != 20 {
		t.Errorf("Gateway.PollInterval = %d, want 20", cfg.Gateway.PollInterval)
	}
	if cfg.Webhook.ID != "hook-abc" {
		t.Errorf("Webhook.ID = %q, want %q", cfg.Webhook.ID, "hook-abc")
	}
	if cfg.API.Port != 9001 {
		t.Errorf("API.Port = %d, want 9001", cfg.API.Port)
	}

	// Defaults survive when the file omits a section
	if cfg.Pulse.ClearDelay != 5 {
		t.Errorf("Pulse.ClearDelay = %d, want default 5", cfg.Pulse.ClearDelay)
	}
	if cfg.AutoReply.Window != 60 {
		t.Errorf("AutoReply.Window = %d, want default 60", cfg.AutoReply.Window)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
gateway:
  api_key: "file-key"
database:
  path: "/tmp/test.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("SMSBRIDGE_GATEWAY_API_KEY", "env-key")
	t.Setenv("SMSBRIDGE_API_PORT", "9999")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.APIKey != "env-key" {
		t.Errorf("Gateway.APIKey = %q, want env override %q", cfg.Gateway.APIKey, "env-key")
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want env override 9999", cfg.API.Port)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Gateway.APIKey = "key"
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
			name:    "missing api key",
			mutate:  func(c *Config) { c.Gateway.APIKey = "" },
			wantErr: true,
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Gateway.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Gateway.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetPollInterval(); got != 15*time.Second {
		t.Errorf("GetPollInterval() = %v, want 15s", got)
	}
	if got := cfg.GetSendTimeout(); got != 15*time.Second {
		t.Errorf("GetSendTimeout() = %v, want 15s", got)
	}
	if got := cfg.GetPulseClearDelay(); got != 5*time.Second {
		t.Errorf("GetPulseClearDelay() = %v, want 5s", got)
	}
	if got := cfg.GetAutoReplyWindow(); got != time.Hour {
		t.Errorf("GetAutoReplyWindow() = %v, want 1h", got)
	}
}
