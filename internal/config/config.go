package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/ble-dongle/internal/ble"
)

// AppName names the config directory and log attributes.
const AppName = "ble-dongle"

// Config holds all application configuration.
type Config struct {
	Device    DeviceConfig `yaml:"device"`
	BLE       BLEConfig    `yaml:"ble"`
	LogLevel  string       `yaml:"log_level"`
	LogFormat string       `yaml:"log_format"` // "text" or "json"
	Color     string       `yaml:"color"`      // "auto", "always" or "never"
}

// DeviceConfig selects which peripheral to connect to.
type DeviceConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"` // MAC on Linux/Windows, CoreBluetooth UUID on macOS
}

// BLEConfig holds GATT and timing settings.
type BLEConfig struct {
	ServiceUUID        string        `yaml:"service_uuid"`
	CharacteristicUUID string        `yaml:"characteristic_uuid"`
	ScanTimeout        time.Duration `yaml:"scan_timeout"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	OpTimeout          time.Duration `yaml:"op_timeout"`
	WriteWithResponse  bool          `yaml:"write_with_response"`
	MaxWriteBytes      int           `yaml:"max_write_bytes"` // 0 disables chunking
	Reconnect          bool          `yaml:"reconnect"`
	ReconnectMax       int           `yaml:"reconnect_max"` // seconds
	Heartbeat          time.Duration `yaml:"heartbeat"`     // 0 disables the liveness write
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		BLE: BLEConfig{
			ServiceUUID:        ble.ServiceUUID,
			CharacteristicUUID: ble.CharacteristicUUID,
			ScanTimeout:        5 * time.Second,
			ConnectTimeout:     15 * time.Second,
			OpTimeout:          5 * time.Second,
			WriteWithResponse:  true,
			ReconnectMax:       30,
		},
		LogLevel:  "info",
		LogFormat: "text",
		Color:     "auto",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := ble.ExpandUUID(c.BLE.ServiceUUID); err != nil {
		return fmt.Errorf("ble.service_uuid: %w", err)
	}
	if _, err := ble.ExpandUUID(c.BLE.CharacteristicUUID); err != nil {
		return fmt.Errorf("ble.characteristic_uuid: %w", err)
	}

	if c.Device.Address != "" {
		if err := ble.ValidateAddress(c.Device.Address); err != nil {
			return fmt.Errorf("device.address: %w", err)
		}
	}

	if c.BLE.ScanTimeout <= 0 {
		return fmt.Errorf("ble.scan_timeout must be > 0")
	}
	if c.BLE.ConnectTimeout <= 0 {
		return fmt.Errorf("ble.connect_timeout must be > 0")
	}
	if c.BLE.OpTimeout < 0 {
		return fmt.Errorf("ble.op_timeout must be >= 0")
	}
	if c.BLE.MaxWriteBytes < 0 {
		return fmt.Errorf("ble.max_write_bytes must be >= 0")
	}
	if c.BLE.Heartbeat < 0 {
		return fmt.Errorf("ble.heartbeat must be >= 0")
	}
	if c.BLE.Reconnect && c.BLE.ReconnectMax <= 0 {
		return fmt.Errorf("ble.reconnect_max must be > 0 when reconnect is enabled")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}

	switch c.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("color must be auto, always, or never, got %q", c.Color)
	}

	return nil
}

const defaultHeader = "# " + AppName + " configuration\n# Generated with defaults; edit to taste.\n\n"

// WriteDefault writes the default config to DefaultConfigPath. It returns
// ("", nil) without touching anything when the file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
