package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/ble-dongle/internal/console"
	"github.com/chaz8081/ble-dongle/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive console (default)",
	Long: `Starts the interactive console on stdin. Lines are written to the dongle;
/connect, /read, /disconnect, /status, /help and /quit control the session.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	runCmd.Flags().Bool("connect", false, "Connect as soon as the console starts")
}

func runConsole(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.session.Disconnect()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := console.New(a.session, cmd.InOrStdin(), a.status)
	if connectNow, _ := cmd.Flags().GetBool("connect"); connectNow {
		go func() { _ = autoConnect(ctx, a.session, a.status) }()
	}
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// autoConnect connects for --connect and hints at /connect after a failure
// the user can retry.
func autoConnect(ctx context.Context, s *session.Session, status session.StatusLog) error {
	err := s.Connect(ctx)
	if err != nil && ctx.Err() == nil && !errors.Is(err, session.ErrUnavailable) {
		status.Print("Type /connect to retry")
	}
	return err
}
