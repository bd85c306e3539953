package main

import (
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

var writeCmd = &cobra.Command{
	Use:   "write <text>",
	Short: "Connect, write text once and disconnect",
	Long: `Connects to the dongle, writes the given text as UTF-8 and disconnects.

Examples:
  ble-dongle write "hello"
  ble-dongle write --name "June" hello world`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWrite,
}

func runWrite(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.session.Disconnect()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := a.connectOnce(ctx); err != nil {
		return err
	}
	return a.session.Write(ctx, strings.Join(args, " "))
}
