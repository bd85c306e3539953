package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Connect, read the characteristic once and disconnect",
	Args:  cobra.NoArgs,
	RunE:  runRead,
}

func runRead(cmd *cobra.Command, _ []string) error {
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
	_, err = a.session.Read(ctx)
	return err
}
