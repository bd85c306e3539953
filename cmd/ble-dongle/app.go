package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chaz8081/ble-dongle/internal/ble"
	"github.com/chaz8081/ble-dongle/internal/config"
	"github.com/chaz8081/ble-dongle/internal/logging"
	"github.com/chaz8081/ble-dongle/internal/session"
	"github.com/chaz8081/ble-dongle/internal/statuslog"
)

// app bundles what every subcommand needs.
type app struct {
	cfg     *config.Config
	status  *statuslog.Log
	adapter ble.Adapter
	session *session.Session
}

// newApp loads config, applies flag overrides, installs the default logger
// and builds the session on the platform adapter.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, level, cfg.LogFormat, colorEnabled(cfg.Color, os.Stderr.Fd())))

	// Arguments are valid; runtime failures should not print usage.
	cmd.SilenceUsage = true

	status := statuslog.New(cmd.OutOrStdout(), statuslog.WithColor(colorEnabled(cfg.Color, os.Stdout.Fd())))
	adapter := ble.NewTinyGoAdapter()
	return &app{
		cfg:     cfg,
		status:  status,
		adapter: adapter,
		session: session.New(adapter, status, sessionOptions(cfg)),
	}, nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		slog.Debug("config loaded", "path", defaultPath)
		return cfg, nil
	}

	slog.Debug("no config file found, using defaults")
	return config.Default(), nil
}

// applyFlags overrides config values with explicitly set global flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		if _, err := logging.ParseLevel(v); err != nil {
			return err
		}
		cfg.LogLevel = v
	}
	if flags.Changed("name") {
		cfg.Device.Name, _ = flags.GetString("name")
	}
	if flags.Changed("address") {
		cfg.Device.Address, _ = flags.GetString("address")
	}
	if noColor, _ := flags.GetBool("no-color"); noColor {
		cfg.Color = "never"
	}
	return nil
}

// sessionOptions maps the config onto session options.
func sessionOptions(cfg *config.Config) session.Options {
	opts := session.DefaultOptions()
	opts.ServiceUUID = cfg.BLE.ServiceUUID
	opts.CharacteristicUUID = cfg.BLE.CharacteristicUUID
	opts.DeviceName = cfg.Device.Name
	opts.DeviceAddress = cfg.Device.Address
	opts.ScanTimeout = cfg.BLE.ScanTimeout
	opts.ConnectTimeout = cfg.BLE.ConnectTimeout
	opts.OpTimeout = cfg.BLE.OpTimeout
	opts.WriteWithResponse = cfg.BLE.WriteWithResponse
	opts.MaxWriteBytes = cfg.BLE.MaxWriteBytes
	opts.Reconnect = cfg.BLE.Reconnect
	opts.Heartbeat = cfg.BLE.Heartbeat
	if cfg.BLE.ReconnectMax > 0 {
		opts.ReconnectMax = time.Duration(cfg.BLE.ReconnectMax) * time.Second
	}
	return opts
}

// colorEnabled resolves the color mode; "auto" colors only terminals.
func colorEnabled(mode string, fd uintptr) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(fd))
	}
}

// connectOnce enables the adapter and connects, for one-shot subcommands.
func (a *app) connectOnce(ctx context.Context) error {
	if err := a.session.Enable(); err != nil {
		return err
	}
	return a.session.Connect(ctx)
}
