package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"calibench/internal/benchmark"
	"calibench/internal/probe"
	"calibench/internal/report"
	"calibench/internal/telemetry"
)

type snapshotter interface {
	Snapshot(ctx context.Context) probe.Snapshot
}

// newProbeFunc allows mocking in tests.
var newProbeFunc = func() snapshotter { return probe.NewHostProbe(slog.Default()) }

var runCmd = &cobra.Command{
	Use:   "run <benchmark[=source]>...",
	Short: "Measure registered benchmarks",
	Long: `Runs each named benchmark and prints a report. A benchmark may carry
its own source payload as name=source, otherwise --source applies.

By default every benchmark runs once with a fixed iteration count. --adaptive
calibrates the count until the relative standard deviation converges, and
--isolated spreads each run over several worker threads or processes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	flags := runCmd.Flags()
	addRunFlags(flags)
	flags.Int("runs", 1, "Repetitions per benchmark")
	flags.Bool("isolated", false, "Run inside isolated contexts")
	flags.Bool("worker-threads", true, "Use worker threads instead of child processes for isolation")
	flags.Int("process-count", 2, "Isolated contexts per run")
	flags.Bool("prioritize", false, "Try to raise the scheduling priority of each context")
	flags.Bool("isolate-cpu", false, "Try to pin each context to its own CPU")
	flags.Duration("timeout", 60*time.Second, "Kill isolated contexts after this long (0 disables)")
	flags.Bool("no-probe", false, "Skip the system probe")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), runFlagKeys)
	if err != nil {
		return err
	}
	source, _ := cmd.Flags().GetString("source")
	ctx := cmd.Context()

	m := newMeasurer(cfg, slog.Default())
	telemetry.LogInfof("Running %d benchmark(s) in %s mode", len(args), m.mode())

	rep := report.Report{Timestamp: time.Now()}
	for _, t := range parseTargets(args, source) {
		entry, err := m.measure(ctx, t)
		if err != nil {
			return err
		}
		rep.Entries = append(rep.Entries, entry)
	}

	if noProbe, _ := cmd.Flags().GetBool("no-probe"); !noProbe {
		snap := newProbeFunc().Snapshot(ctx)
		rep.System = &snap
	}

	previous := previousReport(cmd)

	noColor, _ := cmd.Flags().GetBool("no-color")
	out, err := reporters(cmd.Flags(), report.NewConsole(cmd.OutOrStdout(), noColor))
	if err != nil {
		return err
	}
	if err := out.Write(rep); err != nil {
		return err
	}
	printChanges(cmd.OutOrStdout(), previous, rep)
	return nil
}

// previousReport returns the newest report in the --json history, or nil.
func previousReport(cmd *cobra.Command) *report.Report {
	path, _ := cmd.Flags().GetString("json")
	if path == "" {
		return nil
	}
	store, err := report.NewJSONFile(path)
	if err != nil {
		return nil
	}
	prev, err := store.LoadLatest()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to load history: %v\n", err)
		return nil
	}
	return prev
}

// printChanges compares every entry with the same name in prev.
func printChanges(w io.Writer, prev *report.Report, rep report.Report) {
	if prev == nil {
		return
	}
	before := make(map[string]benchmark.BenchmarkResult, len(prev.Entries))
	for _, e := range prev.Entries {
		before[e.Name] = e.Result
	}

	header := false
	for _, e := range rep.Entries {
		old, ok := before[e.Name]
		if !ok {
			continue
		}
		if !header {
			fmt.Fprintf(w, "\nChanges since %s:\n", prev.Timestamp.Format(time.RFC3339))
			header = true
		}
		c := benchmark.CompareResults("now", e.Result, "before", old)
		verdict := "faster"
		if c.Faster == "before" {
			verdict = "slower"
		}
		fmt.Fprintf(w, "  %s: %.2f%% %s\n", e.Name, c.PercentFaster, verdict)
	}
}
