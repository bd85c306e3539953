package main

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chaz8081/ble-dongle/internal/ble"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List nearby devices",
	Long: `Scans for BLE peripherals. By default only devices advertising the dongle
service are listed; --all lists every device seen.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().Bool("all", false, "List all devices, not only those advertising the dongle service")
}

func runScan(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	filter := a.cfg.BLE.ServiceUUID
	if all, _ := cmd.Flags().GetBool("all"); all {
		filter = ""
	}

	devices, err := ble.ScanForDevices(ctx, a.adapter, filter, a.cfg.BLE.ScanTimeout)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return ble.ErrNoDevice
	}
	return printDevices(cmd, devices)
}

func printDevices(cmd *cobra.Command, devices []ble.Device) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tRSSI\tNAME")
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", d.Address, d.RSSI, name)
	}
	return w.Flush()
}
