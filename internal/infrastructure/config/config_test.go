package config

import (
	"os"
	"path/filepath"
	"testing"
)

// writeConfig writes content to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_JSONDocument(t *testing.T) {
	// The server config contract is a JSON document.
	path := writeConfig(t, `{"hostname": "sensors.local", "port": 8080}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "sensors.local" {
		t.Errorf("Hostname = %q, want %q", cfg.Hostname, "sensors.local")
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Scheme() != "http" {
		t.Errorf("Scheme() = %q, want %q", cfg.Scheme(), "http")
	}
}

func TestLoad_DefaultPortHTTP(t *testing.T) {
	path := writeConfig(t, `{"hostname": "sensors.local"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 80 {
		t.Errorf("Port = %d, want 80", cfg.Port)
	}
}

func TestLoad_DefaultPortHTTPS(t *testing.T) {
	path := writeConfig(t, `{"hostname": "sensors.local", "certfile": "/etc/ssl/cert.pem", "keyfile": "/etc/ssl/key.pem"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 443 {
		t.Errorf("Port = %d, want 443", cfg.Port)
	}
	if cfg.Scheme() != "https" {
		t.Errorf("Scheme() = %q, want %q", cfg.Scheme(), "https")
	}
	if !cfg.TLSEnabled() {
		t.Error("TLSEnabled() = false, want true")
	}
}

func TestLoad_YAMLDocument(t *testing.T) {
	content := `
hostname: sensors.local
poll:
  interval: 30
mqtt:
  enabled: true
  host: broker.local
  topic_prefix: house/temper
`
	path := writeConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Poll.Interval != 30 {
		t.Errorf("Poll.Interval = %d, want 30", cfg.Poll.Interval)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Host != "broker.local" {
		t.Errorf("MQTT = %+v, want enabled with host broker.local", cfg.MQTT)
	}
	if cfg.MQTT.TopicPrefix != "house/temper" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "house/temper")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/server.json")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_MissingHostname(t *testing.T) {
	path := writeConfig(t, `{"port": 8080}`)

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected validation error for missing hostname, got nil")
	}
}

func TestLoad_CertFileEnvExpansion(t *testing.T) {
	t.Setenv("TEMPER_TEST_SSL_DIR", "/run/credentials")
	path := writeConfig(t, `{"hostname": "h", "certfile": "$TEMPER_TEST_SSL_DIR/cert.pem", "keyfile": "$TEMPER_TEST_SSL_DIR/key.pem"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CertFile != "/run/credentials/cert.pem" {
		t.Errorf("CertFile = %q, want expanded path", cfg.CertFile)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TEMPER_MQTT_PASSWORD", "hunter2")
	path := writeConfig(t, `{"hostname": "h", "mqtt": {"enabled": true, "host": "b"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Password != "hunter2" {
		t.Errorf("MQTT.Password = %q, want env override", cfg.MQTT.Password)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "empty hostname",
			mutate:  func(c *Config) { c.Hostname = "" },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "certfile without keyfile",
			mutate:  func(c *Config) { c.CertFile = "/etc/ssl/cert.pem" },
			wantErr: true,
		},
		{
			name:    "negative poll interval",
			mutate:  func(c *Config) { c.Poll.Interval = -1 },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Hostname = "sensors.local"
			cfg.Port = 80
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
