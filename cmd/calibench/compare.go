package main

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	"calibench/internal/benchmark"
	"calibench/internal/report"
	"calibench/internal/telemetry"
)

// newComparatorFunc allows mocking in tests.
var newComparatorFunc = benchmark.NewHostComparator

var compareCmd = &cobra.Command{
	Use:   "compare <benchmark[=source]> <benchmark[=source]>...",
	Short: "Measure benchmarks under the same options and rank them",
	Long: `Measures every benchmark with the same options, prints them fastest
first and compares each pair.`,
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	addRunFlags(compareCmd.Flags())
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), runFlagKeys)
	if err != nil {
		return err
	}
	source, _ := cmd.Flags().GetString("source")

	named := make([]benchmark.Named, 0, len(args))
	for _, t := range parseTargets(args, source) {
		fn, err := t.resolve()
		if err != nil {
			return err
		}
		named = append(named, benchmark.Named{Name: t.Label, Fn: fn})
	}

	mode := "single"
	if cfg.Adaptive.Enabled {
		mode = "adaptive"
	}
	telemetry.LogInfof("Comparing %d benchmark(s) in %s mode", len(named), mode)

	ranking, err := newComparatorFunc().CompareMany(cmd.Context(), named, benchmark.CompareOptions{
		Adaptive:    cfg.Adaptive.Enabled,
		Run:         cfg.RunOptions(),
		Calibration: cfg.AdaptiveOptions(),
	})
	if err != nil {
		return err
	}

	rep := report.Report{Timestamp: time.Now(), Ranking: &ranking, Entries: report.FromResults(ranking.Results)}
	sort.SliceStable(rep.Entries, func(i, j int) bool {
		return rep.Entries[i].Result.Duration < rep.Entries[j].Result.Duration
	})
	for i := range rep.Entries {
		rep.Entries[i].Mode = mode
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	out, err := reporters(cmd.Flags(), report.NewConsole(cmd.OutOrStdout(), noColor))
	if err != nil {
		return err
	}
	return out.Write(rep)
}
