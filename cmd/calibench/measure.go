package main

import (
	"context"
	"fmt"
	"log/slog"

	"calibench/internal/benchmark"
	"calibench/internal/config"
	"calibench/internal/isolate"
	"calibench/internal/report"
	"calibench/internal/stats"
	"calibench/internal/telemetry"
)

// measurer runs one target according to the configured mode.
type measurer struct {
	cfg          config.Config
	executor     *benchmark.Executor
	calibrator   *benchmark.Calibrator
	orchestrator *isolate.Orchestrator
}

func newMeasurer(cfg config.Config, logger *slog.Logger) *measurer {
	exec := benchmark.NewExecutor()
	exec.Logger = telemetry.ForComponent(logger, "executor")
	cal := benchmark.NewCalibrator(exec, exec.Clock)
	cal.Logger = telemetry.ForComponent(logger, "calibrator")

	m := &measurer{cfg: cfg, executor: exec, calibrator: cal}
	if cfg.Isolation.Enabled {
		isoLogger := telemetry.ForComponent(logger, "orchestrator")
		m.orchestrator = &isolate.Orchestrator{
			Launcher:     isolate.NewLauncher(cfg.Isolation.UseWorkerThreads, registry, isoLogger),
			ProcessCount: cfg.Isolation.ProcessCount,
			Timeout:      cfg.Isolation.Timeout,
			Tuning:       cfg.Tuning(),
			Logger:       isoLogger,
		}
	}
	return m
}

func (m *measurer) mode() string {
	switch {
	case m.orchestrator != nil:
		return "isolated_" + m.orchestrator.Launcher.Mode()
	case m.cfg.Adaptive.Enabled:
		return "adaptive"
	default:
		return "single"
	}
}

// measure runs t cfg.Run.Runs times. The result is the mean of all runs;
// statistics cover run durations, or the final calibrated samples in
// adaptive mode.
func (m *measurer) measure(ctx context.Context, t target) (report.Entry, error) {
	entry := report.Entry{Name: t.Label, Mode: m.mode()}

	var results []benchmark.BenchmarkResult
	var durations []float64
	for i := 0; i < m.cfg.Run.Runs; i++ {
		res, adaptive, err := m.once(ctx, t)
		if err != nil {
			return report.Entry{}, fmt.Errorf("%s: %w", t.Label, err)
		}
		results = append(results, res)

		if adaptive != nil {
			cal := adaptive.Calibration
			entry.Calibration = &cal
			durations = durations[:0]
			for _, s := range adaptive.Samples {
				durations = append(durations, s.Duration)
			}
			continue
		}
		durations = append(durations, res.Duration)
	}

	merged, err := isolate.Merge(results)
	if err != nil {
		return report.Entry{}, err
	}
	entry.Result = merged

	if summary, err := stats.CalculateEnhancedStats(durations); err == nil {
		entry.Stats = &summary
	}
	return entry, nil
}

func (m *measurer) once(ctx context.Context, t target) (benchmark.BenchmarkResult, *benchmark.AdaptiveResult, error) {
	if m.orchestrator != nil {
		if err := isolate.ValidateIdentifier(t.Name); err != nil {
			return benchmark.BenchmarkResult{}, nil, err
		}
		opts := m.cfg.RunOptions()
		if m.cfg.Adaptive.Enabled {
			fn, err := t.resolve()
			if err != nil {
				return benchmark.BenchmarkResult{}, nil, err
			}
			n, err := m.calibrator.FindIterationsForTargetDuration(ctx, fn, m.cfg.AdaptiveOptions())
			if err != nil {
				return benchmark.BenchmarkResult{}, nil, err
			}
			opts.Iterations = n
		}
		res, err := m.orchestrator.Run(ctx, isolate.RunRequest{
			Benchmark: t.Name,
			Source:    t.Source,
			Options:   opts,
			Warmup:    m.cfg.Isolation.Warmup,
		})
		return res, nil, err
	}

	fn, err := t.resolve()
	if err != nil {
		return benchmark.BenchmarkResult{}, nil, err
	}

	if m.cfg.Adaptive.Enabled {
		ar, err := m.calibrator.RunAdaptive(ctx, fn, m.cfg.AdaptiveOptions())
		if err != nil {
			return benchmark.BenchmarkResult{}, nil, err
		}
		return ar.BenchmarkResult, &ar, nil
	}

	res, err := m.executor.RunContext(ctx, fn, m.cfg.RunOptions())
	return res, nil, err
}
