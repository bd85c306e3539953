package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ab00", cfg.BLE.ServiceUUID)
	assert.Equal(t, "ab01", cfg.BLE.CharacteristicUUID)
	assert.Equal(t, 5*time.Second, cfg.BLE.ScanTimeout)
	assert.Equal(t, 15*time.Second, cfg.BLE.ConnectTimeout)
	assert.True(t, cfg.BLE.WriteWithResponse)
	assert.Zero(t, cfg.BLE.MaxWriteBytes)
	assert.False(t, cfg.BLE.Reconnect)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "auto", cfg.Color)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
device:
  name: June BLE Dongle
  address: "AA:BB:CC:DD:EE:FF"
ble:
  service_uuid: "0xAB10"
  characteristic_uuid: "ab11"
  scan_timeout: 3s
  connect_timeout: 1m
  op_timeout: 250ms
  write_with_response: false
  max_write_bytes: 20
  reconnect: true
  reconnect_max: 10
log_level: debug
log_format: json
color: never
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "June BLE Dongle", cfg.Device.Name)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.Device.Address)
	assert.Equal(t, "0xAB10", cfg.BLE.ServiceUUID)
	assert.Equal(t, "ab11", cfg.BLE.CharacteristicUUID)
	assert.Equal(t, 3*time.Second, cfg.BLE.ScanTimeout)
	assert.Equal(t, time.Minute, cfg.BLE.ConnectTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.BLE.OpTimeout)
	assert.False(t, cfg.BLE.WriteWithResponse)
	assert.Equal(t, 20, cfg.BLE.MaxWriteBytes)
	assert.True(t, cfg.BLE.Reconnect)
	assert.Equal(t, 10, cfg.BLE.ReconnectMax)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "never", cfg.Color)
	assert.NoError(t, cfg.Validate())
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "device:\n  name: June\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "June", cfg.Device.Name)
	assert.Equal(t, "ab00", cfg.BLE.ServiceUUID)
	assert.True(t, cfg.BLE.WriteWithResponse)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadExpandsTilde(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	require.NoError(t, os.WriteFile(filepath.Join(tmpHome, "dongle.yaml"), []byte("log_level: warn\n"), 0644))

	cfg, err := Load("~/dongle.yaml")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "ble: [not, a, map\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "full service uuid", modify: func(c *Config) { c.BLE.ServiceUUID = "0000ab00-0000-1000-8000-00805f9b34fb" }},
		{name: "invalid service uuid", modify: func(c *Config) { c.BLE.ServiceUUID = "xyz" }, wantErr: true},
		{name: "empty characteristic uuid", modify: func(c *Config) { c.BLE.CharacteristicUUID = "" }, wantErr: true},
		{name: "zero scan timeout", modify: func(c *Config) { c.BLE.ScanTimeout = 0 }, wantErr: true},
		{name: "zero connect timeout", modify: func(c *Config) { c.BLE.ConnectTimeout = 0 }, wantErr: true},
		{name: "zero op timeout waits forever", modify: func(c *Config) { c.BLE.OpTimeout = 0 }},
		{name: "negative op timeout", modify: func(c *Config) { c.BLE.OpTimeout = -time.Second }, wantErr: true},
		{name: "negative max write bytes", modify: func(c *Config) { c.BLE.MaxWriteBytes = -1 }, wantErr: true},
		{name: "reconnect without max", modify: func(c *Config) { c.BLE.Reconnect = true; c.BLE.ReconnectMax = 0 }, wantErr: true},
		{name: "mac address with dashes", modify: func(c *Config) { c.Device.Address = "aa-bb-cc-dd-ee-ff" }},
		{name: "corebluetooth address", modify: func(c *Config) { c.Device.Address = "3f2504e0-4f89-11d3-9a0c-0305e82c3301" }},
		{name: "malformed address", modify: func(c *Config) { c.Device.Address = "AA:BB" }, wantErr: true},
		{name: "heartbeat enabled", modify: func(c *Config) { c.BLE.Heartbeat = 2 * time.Second }},
		{name: "negative heartbeat", modify: func(c *Config) { c.BLE.Heartbeat = -time.Second }, wantErr: true},
		{name: "invalid log level", modify: func(c *Config) { c.LogLevel = "invalid" }, wantErr: true},
		{name: "invalid log format", modify: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "invalid color", modify: func(c *Config) { c.Color = "sometimes" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	// Use a temp dir as fake home to avoid touching real config
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpHome, ".config", "ble-dongle", "config.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# ble-dongle"), "written config should start with header comment")

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "ab00", cfg.BLE.ServiceUUID)
	assert.Equal(t, 5*time.Second, cfg.BLE.ScanTimeout)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "ble-dongle")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	existing := []byte("log_level: debug\n")
	configPath := filepath.Join(configDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, existing, 0644))

	path, err := WriteDefault()
	require.NoError(t, err)
	assert.Empty(t, path)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, existing, data, "WriteDefault() should not overwrite existing config file")
}
