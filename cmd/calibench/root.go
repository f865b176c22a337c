package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"calibench/internal/benchmark"
	"calibench/internal/config"
	"calibench/internal/telemetry"

	_ "calibench/internal/suite"
)

var exit = os.Exit
var cfgFile string

// registry resolves benchmark identifiers for every command.
var registry = benchmark.DefaultRegistry

var rootCmd = &cobra.Command{
	Use:   "calibench",
	Short: "Adaptive micro-benchmark runner",
	Long: `calibench measures registered workloads. It can calibrate iteration
counts until the relative standard deviation settles, compare workloads
against each other and run them in isolated worker threads or processes.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Command Execution Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", r)
			exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'calibench --help' for usage.")
		exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./calibench.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :2112)")
}

var persistentFlagKeys = map[string]string{
	"verbose":      "log.verbose",
	"log-file":     "log.file",
	"metrics-addr": "metrics.addr",
}

// setup loads configuration and initializes logging and metrics. Logs go to
// stderr so stdout carries reports and, in worker processes, the protocol.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.Load(cfgFile); err != nil {
		return err
	}
	bindFlags(cmd.Root().PersistentFlags(), persistentFlagKeys)

	telemetry.InitLogger(viper.GetBool("log.verbose"), viper.GetString("log.file"), cmd.ErrOrStderr())

	if addr := viper.GetString("metrics.addr"); addr != "" {
		go func() {
			if err := telemetry.StartMetricsServer(addr); err != nil {
				slog.Warn("Failed to start metrics server", "addr", addr, "error", err)
			}
		}()
	}
	return nil
}
