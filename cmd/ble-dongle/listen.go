package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/ble-dongle/internal/session"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Connect and show notifications until interrupted",
	Long: `Connects to the dongle and logs every notification until Ctrl+C, the
connection drops or --duration elapses.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().Duration("duration", 0, "Stop after this long (0 = until interrupted)")
}

func runListen(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.session.Disconnect()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d, _ := cmd.Flags().GetDuration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := a.connectOnce(ctx); err != nil {
		return err
	}
	return drain(ctx, a.session, a.cfg.BLE.Reconnect)
}

// drain consumes the notification stream until ctx is done or the stream
// ends without a reconnect to follow. The status log already shows each
// message.
func drain(ctx context.Context, s *session.Session, reconnect bool) error {
	var prev *session.Subscription
	for {
		sub := s.Subscription()
		if sub == nil || sub == prev {
			if !reconnect || !waitReconnect(ctx, s, prev) {
				return stopReason(ctx)
			}
			continue
		}
		prev = sub

		for open := true; open; {
			select {
			case <-ctx.Done():
				return stopReason(ctx)
			case _, open = <-sub.Messages():
			case <-sub.Done():
				open = false
			}
		}
	}
}

// waitReconnect polls until the session has a fresh subscription or ctx ends.
func waitReconnect(ctx context.Context, s *session.Session, prev *session.Subscription) bool {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.State() == session.Connected {
			if sub := s.Subscription(); sub != nil && sub != prev {
				return true
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// stopReason maps the end of listening to the command result: --duration
// elapsing is success, an interrupt is context.Canceled.
func stopReason(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return session.ErrNotConnected
	case errors.Is(err, context.DeadlineExceeded):
		return nil
	default:
		return err
	}
}
