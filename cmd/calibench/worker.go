package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"calibench/internal/isolate"
)

// workerCmd is the child side of process isolation. It reads one request
// file and writes exactly one reply to stdout.
var workerCmd = &cobra.Command{
	Use:    isolate.WorkerCommand,
	Short:  "Run one isolated benchmark context",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("request")

		reply, err := isolate.NewHandler(registry, slog.Default()).ServeFile(cmd.Context(), path, cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("failed to serve request: %w", err)
		}
		if report, ok := reply.(isolate.ErrorReport); ok {
			return fmt.Errorf("benchmark failed: %s", report.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().String("request", "", "Path to the request file")
	_ = workerCmd.MarkFlagRequired("request")
}
