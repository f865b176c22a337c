package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"calibench/internal/benchmark"
	"calibench/internal/config"
	"calibench/internal/report"
)

// Several commands define the same flag names, so flags are bound to viper
// keys when a command runs rather than at init.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if f := flags.Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// loadConfig binds keys and returns the validated configuration.
func loadConfig(flags *pflag.FlagSet, keys map[string]string) (config.Config, error) {
	bindFlags(flags, keys)
	if err := config.ValidateConfig(); err != nil {
		return config.Config{}, err
	}
	return config.Get()
}

func addRunFlags(flags *pflag.FlagSet) {
	adaptive := benchmark.DefaultAdaptiveOptions()

	flags.Int("iterations", 1000, "Measured iterations per run")
	flags.Int("warmup-runs", 3, "Untimed invocations before each run")
	flags.Bool("gc", true, "Hint a garbage collection before and between runs")
	flags.Bool("adaptive", false, "Calibrate iterations until the RSD converges")
	flags.Duration("target-duration", adaptive.TargetDuration, "Target wall time of one calibrated sample")
	flags.Duration("max-time", adaptive.MaxTime, "Time budget for one calibration")
	flags.Float64("target-rsd", adaptive.TargetRSD, "Target relative standard deviation in percent")
	flags.String("source", "", "Source payload for every benchmark without an explicit name=source")
	flags.String("json", "", "Append the report to this JSON history file")
	flags.String("yaml", "", "Write the report to this YAML file")
	flags.Bool("no-color", false, "Disable colored output")
}

var runFlagKeys = map[string]string{
	"iterations":      "run.iterations",
	"warmup-runs":     "run.warmup_runs",
	"runs":            "run.runs",
	"gc":              "run.gc_between_runs",
	"adaptive":        "adaptive.enabled",
	"target-duration": "adaptive.target_duration",
	"max-time":        "adaptive.max_time",
	"target-rsd":      "adaptive.target_rsd",
	"isolated":        "isolation.enabled",
	"worker-threads":  "isolation.use_worker_threads",
	"process-count":   "isolation.process_count",
	"prioritize":      "isolation.prioritize",
	"isolate-cpu":     "isolation.isolate_cpu",
	"timeout":         "isolation.timeout",
}

// target is one benchmark argument: "name" or "name=source".
type target struct {
	Label  string
	Name   string
	Source string
}

func parseTargets(args []string, defaultSource string) []target {
	targets := make([]target, 0, len(args))
	for _, arg := range args {
		name, source, found := strings.Cut(arg, "=")
		if !found {
			source = defaultSource
		}
		targets = append(targets, target{Label: arg, Name: name, Source: source})
	}
	return targets
}

func (t target) resolve() (benchmark.Func, error) {
	fn, err := registry.Resolve(t.Name, t.Source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Label, err)
	}
	return fn, nil
}

func reporters(flags *pflag.FlagSet, console *report.Console) (report.Reporter, error) {
	multi := report.Multi{console}
	if path, _ := flags.GetString("json"); path != "" {
		store, err := report.NewJSONFile(path)
		if err != nil {
			return nil, err
		}
		multi = append(multi, store)
	}
	if path, _ := flags.GetString("yaml"); path != "" {
		multi = append(multi, &report.YAMLFile{Path: path})
	}
	return multi, nil
}
