package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"calibench/internal/measure"
)

// cancelCheckMask bounds how many measured invocations run between
// cancellation checks.
const cancelCheckMask = 1023

// Runner performs a single measured run.
type Runner interface {
	RunContext(ctx context.Context, fn Func, opts Options) (BenchmarkResult, error)
}

// Executor is the single-run executor. It blocks the calling goroutine for
// the whole run; concurrent activity would be measurement noise.
type Executor struct {
	Clock  measure.Clock
	Memory measure.Sampler
	GC     measure.GCHint
	Logger *slog.Logger

	gcWarn sync.Once
}

// NewExecutor returns an executor wired to the host primitives.
func NewExecutor() *Executor {
	return &Executor{
		Clock:  measure.NewMonotonicClock(),
		Memory: measure.NewRuntimeSampler(),
		GC:     measure.RuntimeGC,
	}
}

// Run measures fn without a cancellation point.
func (e *Executor) Run(fn Func, opts Options) (BenchmarkResult, error) {
	return e.RunContext(context.Background(), fn, opts)
}

// RunContext measures fn. Cancellation is observed between warmups and
// every 1024 measured invocations; a cancelled run returns no result.
func (e *Executor) RunContext(ctx context.Context, fn Func, opts Options) (BenchmarkResult, error) {
	if err := opts.Validate(); err != nil {
		return BenchmarkResult{}, err
	}
	if fn == nil {
		return BenchmarkResult{}, fmt.Errorf("%w: nil function", ErrInvalidOptions)
	}

	if opts.ForceGCBetweenRuns {
		e.hintGC()
	}
	for i := 0; i < opts.WarmupRuns; i++ {
		if err := ctx.Err(); err != nil {
			return BenchmarkResult{}, fmt.Errorf("warmup interrupted: %w", err)
		}
		fn()
		if opts.ForceGCBetweenRuns {
			e.hintGC()
		}
	}

	var last any
	done := ctx.Done()

	before := e.Memory.Snapshot()
	start := e.Clock.Now()
	if done == nil {
		for i := 0; i < opts.Iterations; i++ {
			last = fn()
		}
	} else {
		for i := 0; i < opts.Iterations; i++ {
			last = fn()
			if i&cancelCheckMask == cancelCheckMask {
				select {
				case <-done:
					return BenchmarkResult{}, fmt.Errorf("run interrupted after %d iterations: %w", i+1, ctx.Err())
				default:
				}
			}
		}
	}
	end := e.Clock.Now()
	after := e.Memory.Snapshot()

	duration := end - start
	if duration <= 0 {
		return BenchmarkResult{}, fmt.Errorf("%w: %d iterations in %.6fms", ErrZeroDuration, opts.Iterations, duration)
	}

	return BenchmarkResult{
		Duration:     duration,
		Iterations:   opts.Iterations,
		OpsPerSecond: opsPerSecond(opts.Iterations, duration),
		Memory:       measure.Diff(before, after),
		Value:        last,
	}, nil
}

func (e *Executor) hintGC() {
	if e.GC == nil {
		return
	}
	if err := e.GC(); err != nil {
		e.gcWarn.Do(func() {
			e.logger().Warn("gc hint unavailable, continuing without it", "error", err)
		})
	}
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
