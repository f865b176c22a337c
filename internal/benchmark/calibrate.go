package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"calibench/internal/measure"
	"calibench/internal/stats"
	"calibench/internal/telemetry"
)

const (
	// rescaleFactor multiplies the iteration count on each adjustment step.
	rescaleFactor = 1.5

	// targetTolerance is the relative miss from the target duration that
	// triggers one proportional correction in phase A.
	targetTolerance = 0.2

	// minSamplesForStats is the number of samples before RSD is evaluated.
	minSamplesForStats = 3
)

// AdaptiveOptions configures the calibration controller.
type AdaptiveOptions struct {
	MinIterations      int           `json:"min_iterations" yaml:"min_iterations"`
	MaxIterations      int           `json:"max_iterations" yaml:"max_iterations"`
	TargetDuration     time.Duration `json:"target_duration" yaml:"target_duration"`
	MaxTime            time.Duration `json:"max_time" yaml:"max_time"`
	TargetRSD          float64       `json:"target_rsd" yaml:"target_rsd"`
	MinSamples         int           `json:"min_samples" yaml:"min_samples"`
	MaxSamples         int           `json:"max_samples" yaml:"max_samples"`
	WarmupRatio        float64       `json:"warmup_ratio" yaml:"warmup_ratio"`
	AdaptiveSteps      int           `json:"adaptive_steps" yaml:"adaptive_steps"`
	ForceGCBetweenRuns bool          `json:"force_gc_between_runs" yaml:"force_gc_between_runs"`
}

// DefaultAdaptiveOptions returns the stock calibration settings.
func DefaultAdaptiveOptions() AdaptiveOptions {
	return AdaptiveOptions{
		MinIterations:      10,
		MaxIterations:      10_000_000,
		TargetDuration:     500 * time.Millisecond,
		MaxTime:            30 * time.Second,
		TargetRSD:          2.0,
		MinSamples:         5,
		MaxSamples:         30,
		WarmupRatio:        0.1,
		AdaptiveSteps:      4,
		ForceGCBetweenRuns: true,
	}
}

// Validate checks ranges and counts.
func (o AdaptiveOptions) Validate() error {
	switch {
	case o.MinIterations <= 0:
		return fmt.Errorf("%w: min iterations must be positive, got %d", ErrInvalidOptions, o.MinIterations)
	case o.MaxIterations < o.MinIterations:
		return fmt.Errorf("%w: max iterations %d below min iterations %d", ErrInvalidOptions, o.MaxIterations, o.MinIterations)
	case o.TargetDuration <= 0:
		return fmt.Errorf("%w: target duration must be positive, got %v", ErrInvalidOptions, o.TargetDuration)
	case o.MaxTime <= 0:
		return fmt.Errorf("%w: max time must be positive, got %v", ErrInvalidOptions, o.MaxTime)
	case o.TargetRSD < 0:
		return fmt.Errorf("%w: target RSD must be non-negative, got %v", ErrInvalidOptions, o.TargetRSD)
	case o.MinSamples <= 0:
		return fmt.Errorf("%w: min samples must be positive, got %d", ErrInvalidOptions, o.MinSamples)
	case o.MaxSamples < o.MinSamples:
		return fmt.Errorf("%w: max samples %d below min samples %d", ErrInvalidOptions, o.MaxSamples, o.MinSamples)
	case o.WarmupRatio < 0:
		return fmt.Errorf("%w: warmup ratio must be non-negative, got %v", ErrInvalidOptions, o.WarmupRatio)
	case o.AdaptiveSteps < 0:
		return fmt.Errorf("%w: adaptive steps must be non-negative, got %d", ErrInvalidOptions, o.AdaptiveSteps)
	}
	return nil
}

// StopReason records why the sampling loop ended.
type StopReason string

const (
	StopConverged      StopReason = "converged"
	StopMaxSamples     StopReason = "max_samples"
	StopStepsExhausted StopReason = "steps_exhausted"
	StopBudgetExceeded StopReason = "budget_exceeded"
)

// Calibration describes how an adaptive result was obtained.
type Calibration struct {
	InitialIterations int           `json:"initial_iterations" yaml:"initial_iterations"`
	FinalIterations   int           `json:"final_iterations" yaml:"final_iterations"`
	SampleCount       int           `json:"sample_count" yaml:"sample_count"`
	RelativeStdDev    float64       `json:"relative_standard_deviation" yaml:"relative_standard_deviation"`
	AdjustmentSteps   int           `json:"adjustment_steps" yaml:"adjustment_steps"`
	TimeSpent         time.Duration `json:"time_spent" yaml:"time_spent"`
	StopReason        StopReason    `json:"stop_reason" yaml:"stop_reason"`

	// BudgetExceeded is a warning, not an error: the result is best effort
	// and RelativeStdDev may be above target.
	BudgetExceeded bool `json:"budget_exceeded" yaml:"budget_exceeded"`
}

// AdaptiveResult is the average over the final sample set plus the
// calibration report.
type AdaptiveResult struct {
	BenchmarkResult `yaml:",inline"`
	Calibration Calibration `json:"calibration" yaml:"calibration"`

	// Samples is the final sample set the average was taken over.
	Samples []BenchmarkResult `json:"-" yaml:"-"`
}

// calibrationState lives for one RunAdaptive call.
type calibrationState struct {
	initialIterations int
	currentIterations int
	samples           []BenchmarkResult
	adjustmentSteps   int
	startedAt         float64
}

// Calibrator decides how many iterations to run and when to stop.
type Calibrator struct {
	Runner Runner
	Clock  measure.Clock
	Logger *slog.Logger
}

// NewCalibrator builds a calibrator around a runner. The clock must be the
// one the runner measures with so budgets and samples agree.
func NewCalibrator(runner Runner, clock measure.Clock) *Calibrator {
	return &Calibrator{Runner: runner, Clock: clock}
}

// NewHostCalibrator wires a calibrator to a fresh host executor.
func NewHostCalibrator() *Calibrator {
	exec := NewExecutor()
	return NewCalibrator(exec, exec.Clock)
}

// FindIterationsForTargetDuration finds an iteration count whose run takes
// roughly opts.TargetDuration, clamped to [MinIterations, MaxIterations].
func (c *Calibrator) FindIterationsForTargetDuration(ctx context.Context, fn Func, opts AdaptiveOptions) (int, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}

	warmup := int(math.Ceil(float64(opts.MinIterations) * opts.WarmupRatio))
	if warmup < 1 {
		warmup = 1
	}
	if _, err := c.Runner.RunContext(ctx, fn, Options{Iterations: warmup, ForceGCBetweenRuns: opts.ForceGCBetweenRuns}); err != nil {
		return 0, fmt.Errorf("calibration warmup: %w", err)
	}

	probe, err := c.Runner.RunContext(ctx, fn, Options{Iterations: opts.MinIterations, ForceGCBetweenRuns: opts.ForceGCBetweenRuns})
	if err != nil {
		return 0, fmt.Errorf("calibration probe: %w", err)
	}

	target := durationMs(opts.TargetDuration)
	iterationsPerMs := float64(opts.MinIterations) / probe.Duration
	n := clampIterations(iterationsPerMs*target, opts)

	check, err := c.Runner.RunContext(ctx, fn, Options{Iterations: n, ForceGCBetweenRuns: opts.ForceGCBetweenRuns})
	if err != nil {
		return 0, fmt.Errorf("calibration check: %w", err)
	}

	if math.Abs(check.Duration-target)/target > targetTolerance {
		corrected := clampIterations(float64(n)*target/check.Duration, opts)
		c.logger().Debug("correcting calibrated iterations",
			"measured_ms", check.Duration, "target_ms", target, "from", n, "to", corrected)
		n = corrected
	}
	return n, nil
}

// RunAdaptive calibrates the iteration count, then samples until the RSD of
// the per-iteration time is within TargetRSD (with at least MinSamples), or
// MaxSamples, AdaptiveSteps or MaxTime run out. MaxTime is checked between
// samples only. The only errors are invalid options and runner failures.
func (c *Calibrator) RunAdaptive(ctx context.Context, fn Func, opts AdaptiveOptions) (AdaptiveResult, error) {
	if err := opts.Validate(); err != nil {
		return AdaptiveResult{}, err
	}
	telemetry.TrackRun("adaptive")

	st := calibrationState{startedAt: c.Clock.Now()}

	initial, err := c.FindIterationsForTargetDuration(ctx, fn, opts)
	if err != nil {
		return AdaptiveResult{}, err
	}
	st.initialIterations = initial
	st.currentIterations = initial

	budget := durationMs(opts.MaxTime)
	var reason StopReason
	var rsd float64

	for reason == "" {
		res, err := c.Runner.RunContext(ctx, fn, Options{
			Iterations:         st.currentIterations,
			ForceGCBetweenRuns: opts.ForceGCBetweenRuns,
		})
		if err != nil {
			return AdaptiveResult{}, err
		}
		st.samples = append(st.samples, res)
		telemetry.TrackCalibrationSample()

		if c.Clock.Now()-st.startedAt > budget {
			reason = StopBudgetExceeded
			break
		}
		if len(st.samples) >= opts.MaxSamples {
			reason = StopMaxSamples
			break
		}
		if len(st.samples) < minSamplesForStats {
			continue
		}

		rsd = perIterationRSD(st.samples)
		switch {
		case rsd <= opts.TargetRSD:
			if len(st.samples) >= opts.MinSamples {
				reason = StopConverged
			}
		case st.adjustmentSteps < opts.AdaptiveSteps:
			c.rescale(&st, opts)
		case len(st.samples) >= opts.MinSamples:
			reason = StopStepsExhausted
		}
	}

	rsd = perIterationRSD(st.samples)
	cal := Calibration{
		InitialIterations: st.initialIterations,
		FinalIterations:   st.currentIterations,
		SampleCount:       len(st.samples),
		RelativeStdDev:    rsd,
		AdjustmentSteps:   st.adjustmentSteps,
		TimeSpent:         msDuration(c.Clock.Now() - st.startedAt),
		StopReason:        reason,
		BudgetExceeded:    reason == StopBudgetExceeded,
	}
	telemetry.SetCalibrationRSD(rsd)

	if cal.BudgetExceeded {
		telemetry.TrackBudgetExceeded()
		c.logger().Warn("calibration time budget exceeded, returning best-effort result",
			"max_time", opts.MaxTime,
			"samples", cal.SampleCount,
			"rsd", rsd,
			"target_rsd", opts.TargetRSD)
	}

	return AdaptiveResult{
		BenchmarkResult: averageResults(st.samples),
		Calibration:     cal,
		Samples:         st.samples,
	}, nil
}

// rescale grows the iteration count by rescaleFactor. Samples taken at less
// than half the new count are no longer comparable and are dropped.
func (c *Calibrator) rescale(st *calibrationState, opts AdaptiveOptions) {
	st.adjustmentSteps++
	next := int(math.Ceil(float64(st.currentIterations) * rescaleFactor))
	if next > opts.MaxIterations {
		next = opts.MaxIterations
	}

	discard := next > 2*st.initialIterations
	c.logger().Debug("rescaling iterations",
		"step", st.adjustmentSteps, "from", st.currentIterations, "to", next, "discard", discard)

	st.currentIterations = next
	if discard {
		st.samples = st.samples[:0]
	}
	telemetry.TrackRescale(discard)
}

func (c *Calibrator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// perIterationRSD is the RSD of duration/iterations, which equals the RSD of
// the raw durations when every sample ran the same count.
func perIterationRSD(samples []BenchmarkResult) float64 {
	if len(samples) < 2 {
		return 0
	}
	xs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.PerIteration()
	}
	summary, err := stats.CalculateStats(xs)
	if err != nil {
		return 0
	}
	return summary.RelativeStdDev()
}

func clampIterations(n float64, opts AdaptiveOptions) int {
	if math.IsNaN(n) || n < float64(opts.MinIterations) {
		return opts.MinIterations
	}
	if n > float64(opts.MaxIterations) {
		return opts.MaxIterations
	}
	return int(math.Round(n))
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
