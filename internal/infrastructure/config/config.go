package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default ports selected by the presence of TLS material.
// A config with a certfile serves https on 443; otherwise http on 80.
const (
	defaultPortHTTP  = 80
	defaultPortHTTPS = 443
)

// Config is the root configuration structure for the temper service.
//
// The on-disk document is the server configuration contract: a JSON (or
// YAML; JSON parses as YAML) document carrying the hostname, optional port
// and optional TLS material. The remaining sections are optional and
// default to disabled.
type Config struct {
	// Hostname is the address the service listens on and the host used when
	// synthesising per-device URLs. Required.
	Hostname string `yaml:"hostname"`

	// Port defaults to 443 when a certfile is configured, 80 otherwise.
	Port int `yaml:"port"`

	// CertFile and KeyFile enable TLS termination when both are set.
	// Environment variables in the paths are expanded at load time.
	CertFile string `yaml:"certfile"`
	KeyFile  string `yaml:"keyfile"`

	Logging  LoggingConfig  `yaml:"logging"`
	Poll     PollConfig     `yaml:"poll"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PollConfig contains background acquisition settings.
//
// The poller drives the MQTT, InfluxDB and WebSocket outputs; it shares the
// service's exclusive device lock so polled reads never interleave with
// request-driven reads.
type PollConfig struct {
	// Interval between background acquisitions, in seconds.
	Interval int `yaml:"interval"`
}

// MQTTConfig contains the optional MQTT publisher settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TLS         bool   `yaml:"tls"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// InfluxDBConfig contains the optional time-series export settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Load reads configuration from a JSON or YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TEMPER_SECTION_KEY
// For example: TEMPER_MQTT_PASSWORD, TEMPER_INFLUXDB_TOKEN
//
// Parameters:
//   - path: Path to the configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or validation fails
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

	// TLS material may reference environment variables, e.g.
	// "$CREDENTIALS_DIRECTORY/cert.pem" under systemd.
	cfg.CertFile = os.ExpandEnv(cfg.CertFile)
	cfg.KeyFile = os.ExpandEnv(cfg.KeyFile)

	// The default port depends on whether TLS is configured, so it is
	// resolved after the file and environment have been applied.
	if cfg.Port == 0 {
		if cfg.CertFile != "" {
			cfg.Port = defaultPortHTTPS
		} else {
			cfg.Port = defaultPortHTTP
		}
	}

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
			Format: "json",
			Output: "stdout",
		},
		Poll: PollConfig{
			Interval: 60,
		},
		MQTT: MQTTConfig{
			Host:        "localhost",
			Port:        1883,
			ClientID:    "temper-core",
			TopicPrefix: "temper",
			QoS:         1,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TEMPER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TEMPER_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}

	// MQTT credentials are the values most likely to be injected rather
	// than written to disk.
	if v := os.Getenv("TEMPER_MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("TEMPER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("TEMPER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	if v := os.Getenv("TEMPER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Hostname == "" {
		errs = append(errs, "hostname is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		errs = append(errs, "certfile and keyfile must be set together")
	}
	if c.Poll.Interval < 0 {
		errs = append(errs, "poll.interval must not be negative")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Host == "" {
		errs = append(errs, "mqtt.host is required when mqtt is enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TLSEnabled reports whether the service should terminate TLS.
func (c *Config) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// Scheme returns the URL scheme matching the TLS configuration.
func (c *Config) Scheme() string {
	if c.TLSEnabled() {
		return "https"
	}
	return "http"
}

// PollInterval returns the background acquisition interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Second
}
