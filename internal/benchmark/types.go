package benchmark

import (
	"errors"
	"fmt"

	"calibench/internal/measure"
)

var (
	// ErrInvalidOptions reports zero or negative counts and inverted ranges.
	ErrInvalidOptions = errors.New("invalid benchmark options")

	// ErrZeroDuration reports a run whose measured duration was not positive.
	// Such a run is a measurement error, never a valid sample.
	ErrZeroDuration = errors.New("measured duration is zero")

	// ErrUnknownBenchmark is returned when a registry lookup misses.
	ErrUnknownBenchmark = errors.New("unknown benchmark")

	// ErrAlreadyRegistered is returned when a name is registered twice.
	ErrAlreadyRegistered = errors.New("benchmark already registered")
)

// Func is the unit of work being measured. Only the value returned by the
// last measured invocation is retained.
type Func func() any

// Options controls a single run.
type Options struct {
	Iterations         int  `json:"iterations" yaml:"iterations"`
	WarmupRuns         int  `json:"warmup_runs" yaml:"warmup_runs"`
	ForceGCBetweenRuns bool `json:"force_gc_between_runs" yaml:"force_gc_between_runs"`
}

// Validate rejects non-positive iteration counts and negative warmups.
func (o Options) Validate() error {
	if o.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidOptions, o.Iterations)
	}
	if o.WarmupRuns < 0 {
		return fmt.Errorf("%w: warmup runs must be non-negative, got %d", ErrInvalidOptions, o.WarmupRuns)
	}
	return nil
}

// BenchmarkResult is one measurement. Duration is in milliseconds and is
// positive whenever Iterations is positive.
type BenchmarkResult struct {
	Duration     float64             `json:"duration_ms" yaml:"duration_ms"`
	Iterations   int                 `json:"iterations" yaml:"iterations"`
	OpsPerSecond float64             `json:"ops_per_second" yaml:"ops_per_second"`
	Memory       measure.MemoryDelta `json:"memory" yaml:"memory"`

	// Value is the return value of the last measured invocation.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// Custom holds numeric metrics contributed by the workload.
	Custom map[string]float64 `json:"custom,omitempty" yaml:"custom,omitempty"`

	// Labels holds non-numeric annotations.
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// PerIteration returns the mean milliseconds spent per invocation.
func (r BenchmarkResult) PerIteration() float64 {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / float64(r.Iterations)
}

// opsPerSecond derives throughput from a millisecond duration.
func opsPerSecond(iterations int, durationMs float64) float64 {
	return float64(iterations) / (durationMs / 1000)
}

// averageResults folds samples into a single result: duration, throughput
// and every memory dimension are arithmetic means. Iterations and Value come
// from the last sample.
func averageResults(samples []BenchmarkResult) BenchmarkResult {
	if len(samples) == 0 {
		return BenchmarkResult{}
	}

	var dur, ops, rss, heapUsed, heapTotal, external float64
	for _, s := range samples {
		dur += s.Duration
		ops += s.OpsPerSecond
		rss += float64(s.Memory.RSS)
		heapUsed += float64(s.Memory.HeapUsed)
		heapTotal += float64(s.Memory.HeapTotal)
		external += float64(s.Memory.External)
	}
	n := float64(len(samples))
	last := samples[len(samples)-1]

	return BenchmarkResult{
		Duration:     dur / n,
		Iterations:   last.Iterations,
		OpsPerSecond: ops / n,
		Memory: measure.MemoryDelta{
			RSS:       int64(rss / n),
			HeapUsed:  int64(heapUsed / n),
			HeapTotal: int64(heapTotal / n),
			External:  int64(external / n),
		},
		Value:  last.Value,
		Custom: last.Custom,
		Labels: last.Labels,
	}
}
