// Package config provides configuration handling for the UDP tunnel.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/irctrakz/udptun/pkg/core"
	"github.com/irctrakz/udptun/pkg/logging"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "UDPTUN_"

// Config represents the complete tunnel configuration.
type Config struct {
	// Tunnel contains the device and socket configuration.
	Tunnel core.TunnelConfig `json:"tunnel" yaml:"tunnel"`

	// Logging contains the logging configuration.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics contains the rate reporter configuration.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Debug contains optional diagnostics.
	Debug DebugConfig `json:"debug" yaml:"debug"`
}

// LoggingConfig contains configuration for logging.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format"`

	// File is the log file path.
	File string `json:"file" yaml:"file"`

	// MaxSize is the maximum size of the log file in megabytes.
	MaxSize int `json:"maxSize" yaml:"maxSize"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `json:"maxBackups" yaml:"maxBackups"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `json:"maxAge" yaml:"maxAge"`
}

// MetricsConfig controls the periodic rate report.
type MetricsConfig struct {
	// Interval is a Go duration string such as "1s".
	Interval string `json:"interval" yaml:"interval"`
	Format   string `json:"format" yaml:"format"`
	Disabled bool   `json:"disabled" yaml:"disabled"`
}

// IntervalDuration parses Interval, falling back to one second.
func (m MetricsConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(m.Interval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// DebugConfig holds diagnostics that are off unless set.
type DebugConfig struct {
	// Pcap is the path of a raw-IP capture of forwarded packets.
	Pcap string `json:"pcap" yaml:"pcap"`

	// HealthAddr is the listen address of the /health and /metrics endpoint.
	HealthAddr string `json:"healthAddr" yaml:"healthAddr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tunnel: core.TunnelConfig{
			TunName: "tun1",
			Host:    "",
			Port:    1234,
			Server:  false,
			MTU:     1500,
			Device:  core.DeviceWater,
			BringUp: false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Metrics: MetricsConfig{
			Interval: "1s",
			Format:   "text",
		},
	}
}

// LoadFromFile loads configuration from a file.
func LoadFromFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables already set are left alone.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func env(name string) (string, bool) {
	val := strings.TrimSpace(os.Getenv(EnvPrefix + name))
	return val, val != ""
}

// Truthy reports whether val is one of 1, true, yes, on.
func Truthy(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// LoadFromEnv loads configuration from UDPTUN_* environment variables.
// Unparseable numbers are ignored.
func LoadFromEnv(config *Config) {
	// Tunnel config
	if val, ok := env("TUN_NAME"); ok {
		config.Tunnel.TunName = val
	}
	if val, ok := env("HOST"); ok {
		config.Tunnel.Host = val
	}
	if val, ok := env("PORT"); ok {
		if port, err := strconv.Atoi(val); err == nil {
			config.Tunnel.Port = port
		}
	}
	if val, ok := env("SERVER"); ok {
		config.Tunnel.Server = Truthy(val)
	}
	if val, ok := env("ROLE"); ok {
		if role, err := core.ParseRole(val); err == nil {
			config.Tunnel.Server = role == core.Server
		} else {
			logging.Warnf("ignoring %sROLE: %v", EnvPrefix, err)
		}
	}
	if val, ok := env("MTU"); ok {
		if mtu, err := strconv.Atoi(val); err == nil {
			config.Tunnel.MTU = mtu
		}
	}
	if val, ok := env("DEVICE"); ok {
		config.Tunnel.Device = val
	}
	if val, ok := env("ADDRESS"); ok {
		config.Tunnel.Address = val
	}
	if val, ok := env("UP"); ok {
		config.Tunnel.BringUp = Truthy(val)
	}

	// Logging config
	if val, ok := env("LOG_LEVEL"); ok {
		config.Logging.Level = val
	}
	if val, ok := env("LOG_FORMAT"); ok {
		config.Logging.Format = val
	}
	if val, ok := env("LOG_FILE"); ok {
		config.Logging.File = val
	}
	if val, ok := env("LOG_MAX_SIZE"); ok {
		if maxSize, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxSize = maxSize
		}
	}
	if val, ok := env("LOG_MAX_BACKUPS"); ok {
		if maxBackups, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxBackups = maxBackups
		}
	}
	if val, ok := env("LOG_MAX_AGE"); ok {
		if maxAge, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxAge = maxAge
		}
	}

	// Metrics and diagnostics
	if val, ok := env("METRICS_INTERVAL"); ok {
		config.Metrics.Interval = val
	}
	if val, ok := env("METRICS_FORMAT"); ok {
		config.Metrics.Format = val
	}
	if val, ok := env("METRICS_DISABLED"); ok {
		config.Metrics.Disabled = Truthy(val)
	}
	if val, ok := env("PCAP"); ok {
		config.Debug.Pcap = val
	}
	if val, ok := env("HEALTH_ADDR"); ok {
		config.Debug.HealthAddr = val
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	t := c.Tunnel
	if t.TunName == "" {
		return fmt.Errorf("TUN name cannot be empty")
	}
	addr, err := netip.ParseAddr(t.Host)
	if err != nil || !addr.Is4() {
		return fmt.Errorf("invalid host %q: must be an IPv4 address", t.Host)
	}
	if !t.Server && addr.IsUnspecified() {
		return fmt.Errorf("client cannot target the unspecified address %s", t.Host)
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("invalid port: %d", t.Port)
	}
	if t.MTU < 68 || t.MTU > 65535 {
		return fmt.Errorf("invalid TUN MTU: %d", t.MTU)
	}
	switch t.Device {
	case "", core.DeviceWater, core.DeviceWireGuard:
	default:
		return fmt.Errorf("unknown device backend: %s", t.Device)
	}
	if t.Address != "" {
		if _, err := netip.ParsePrefix(t.Address); err != nil {
			return fmt.Errorf("invalid interface address (must be in CIDR notation, e.g., '10.0.0.1/24'): %w", err)
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if !knownFormat(c.Logging.Format) {
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	if !c.Metrics.Disabled {
		d, err := time.ParseDuration(c.Metrics.Interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid metrics interval: %q", c.Metrics.Interval)
		}
		if !knownFormat(c.Metrics.Format) {
			return fmt.Errorf("invalid metrics format: %s", c.Metrics.Format)
		}
	}

	return nil
}

func knownFormat(f string) bool {
	switch strings.ToLower(f) {
	case "", "text", "json":
		return true
	}
	return false
}

// Endpoint returns host:port of the tunnel socket. Call after Validate.
func (c *Config) Endpoint() netip.AddrPort {
	addr, _ := netip.ParseAddr(c.Tunnel.Host)
	return netip.AddrPortFrom(addr, uint16(c.Tunnel.Port))
}

// ApplyLogging applies the logging configuration.
func (c *Config) ApplyLogging() error {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return err
	}
	logging.SetLevel(level)

	if err := logging.SetFormat(c.Logging.Format); err != nil {
		return err
	}

	if c.Logging.File != "" {
		err := logging.EnableFileLogging(
			filepath.Dir(c.Logging.File),
			filepath.Base(c.Logging.File),
			c.Logging.MaxSize,
			c.Logging.MaxBackups,
			c.Logging.MaxAge,
		)
		if err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
	}

	return nil
}

// SaveToFile saves the configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch {
	case strings.HasSuffix(path, ".json"):
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
