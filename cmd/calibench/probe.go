package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Show host conditions that affect measurements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap := newProbeFunc().Snapshot(cmd.Context())
		out := cmd.OutOrStdout()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		fmt.Fprintf(out, "CPU load:  %.1f%%\n", snap.CPULoad)
		fmt.Fprintf(out, "Memory:    %s used of %s (%.1f%%), %s available\n",
			humanize.IBytes(snap.Memory.Used), humanize.IBytes(snap.Memory.Total),
			snap.Memory.UsedPercent, humanize.IBytes(snap.Memory.Available))
		if snap.Thermal.Sensor != "" {
			fmt.Fprintf(out, "Thermal:   %s (%.1f°C, %s)\n", snap.Thermal.State, snap.Thermal.MaxCelsius, snap.Thermal.Sensor)
		} else {
			fmt.Fprintf(out, "Thermal:   %s\n", snap.Thermal.State)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().Bool("json", false, "Print the snapshot as JSON")
}
