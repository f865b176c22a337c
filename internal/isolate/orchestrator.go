package isolate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"calibench/internal/benchmark"
	"calibench/internal/telemetry"
)

// Orchestrator runs a benchmark in ProcessCount isolated contexts at once
// and merges their reports.
//
// The first failing context fails the whole run and cancels the rest; no
// partial average is ever returned, since it would not reflect the
// configured parallelism.
type Orchestrator struct {
	Launcher     Launcher
	ProcessCount int
	Timeout      time.Duration
	Tuning       Tuning
	Logger       *slog.Logger
}

// Run validates req, fans it out and merges the reports.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (benchmark.BenchmarkResult, error) {
	if err := ValidateIdentifier(req.Benchmark); err != nil {
		return benchmark.BenchmarkResult{}, err
	}
	if o.ProcessCount < 1 {
		return benchmark.BenchmarkResult{}, fmt.Errorf("%w: process count must be positive, got %d", benchmark.ErrInvalidOptions, o.ProcessCount)
	}
	if err := req.Options.Validate(); err != nil {
		return benchmark.BenchmarkResult{}, err
	}
	if o.Launcher == nil {
		return benchmark.BenchmarkResult{}, errors.New("orchestrator has no launcher")
	}

	mode := o.Launcher.Mode()
	telemetry.TrackRun("isolated_" + mode)

	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	start := time.Now()
	o.logger().Debug("starting isolated run",
		"benchmark", req.Benchmark, "mode", mode, "contexts", o.ProcessCount, "timeout", o.Timeout)

	reports := make([]benchmark.BenchmarkResult, o.ProcessCount)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.ProcessCount; i++ {
		ctxReq := req
		ctxReq.Tuning = o.Tuning
		ctxReq.Tuning.CPU = i

		g.Go(func() error {
			res, err := o.launch(gctx, i, mode, ctxReq)
			if err != nil {
				return err
			}
			reports[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		telemetry.TrackContextFailure(mode)
		o.logger().Error("isolated run failed", "benchmark", req.Benchmark, "mode", mode, "error", err)
		return benchmark.BenchmarkResult{}, err
	}
	telemetry.ObserveIsolatedRun(mode, time.Since(start).Seconds())

	return Merge(reports)
}

func (o *Orchestrator) launch(ctx context.Context, index int, mode string, req RunRequest) (benchmark.BenchmarkResult, error) {
	msg, err := o.Launcher.Launch(ctx, index, req)
	if err != nil {
		return benchmark.BenchmarkResult{}, &ContextFailure{Context: index, Mode: mode, Err: err}
	}

	switch m := msg.(type) {
	case ResultReport:
		return m.Result, nil
	case ErrorReport:
		return benchmark.BenchmarkResult{}, &ContextFailure{Context: index, Mode: mode, Message: m.Message}
	case RunRequest:
		return benchmark.BenchmarkResult{}, &ContextFailure{Context: index, Mode: mode, Message: "context replied with a run request", Err: ErrProtocol}
	default:
		return benchmark.BenchmarkResult{}, &ContextFailure{Context: index, Mode: mode, Message: "context sent no reply", Err: ErrProtocol}
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
