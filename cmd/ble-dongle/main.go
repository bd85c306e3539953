package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

var rootCmd = &cobra.Command{
	Use:   "ble-dongle",
	Short: "Terminal controller for the June BLE dongle",
	Long: `Connects to the June BLE dongle (service 0xAB00, characteristic 0xAB01),
writes typed text to it and shows its notifications in a timestamped status log.

Without a subcommand an interactive console is started; type /help inside it.`,
	Version: formatVersion(version),
	Args:    cobra.NoArgs,
	RunE:    runConsole,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", formatUserError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}} (commit %s, built %s)\n", commit, date))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(initConfigCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config file (default: ~/.config/ble-dongle/config.yaml)")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("name", "", "Select the device with this advertised name")
	pf.String("address", "", "Select the device with this address")
	pf.Bool("no-color", false, "Disable colored output")

	rootCmd.Flags().Bool("connect", false, "Connect as soon as the console starts")
}
