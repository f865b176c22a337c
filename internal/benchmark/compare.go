package benchmark

import (
	"context"
	"fmt"
)

// Named pairs a benchmark function with its display name.
type Named struct {
	Name string
	Fn   Func
}

// CompareOptions selects how each benchmark is measured. Every benchmark in
// a comparison is measured with the same options.
type CompareOptions struct {
	Adaptive    bool
	Run         Options
	Calibration AdaptiveOptions
}

// Comparison is the relative performance of two benchmarks.
type Comparison struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`

	// TimeRatio is duration(A) / duration(B).
	TimeRatio float64 `json:"time_ratio" yaml:"time_ratio"`
	// OpsRatio is throughput(A) / throughput(B).
	OpsRatio float64 `json:"ops_ratio" yaml:"ops_ratio"`
	// MemoryRatio is heap-used delta(A) / heap-used delta(B), 0 when B's is 0.
	MemoryRatio float64 `json:"memory_ratio" yaml:"memory_ratio"`

	Faster string `json:"faster" yaml:"faster"`
	Slower string `json:"slower" yaml:"slower"`

	// PercentFaster is how much longer the slower one takes relative to the
	// faster one. Never negative.
	PercentFaster float64 `json:"percent_faster" yaml:"percent_faster"`
}

// String returns a one-line summary.
func (c Comparison) String() string {
	return fmt.Sprintf("%s is %.2f%% faster than %s", c.Faster, c.PercentFaster, c.Slower)
}

// Ranking is the result of comparing a set of benchmarks.
type Ranking struct {
	Comparisons []Comparison               `json:"comparisons" yaml:"comparisons"`
	Fastest     string                     `json:"fastest" yaml:"fastest"`
	Slowest     string                     `json:"slowest" yaml:"slowest"`
	Order       []string                   `json:"order" yaml:"order"`
	Results     map[string]BenchmarkResult `json:"results" yaml:"results"`
}

// Comparator measures benchmarks and ranks them.
type Comparator struct {
	Runner     Runner
	Calibrator *Calibrator
}

// NewComparator builds a comparator. The calibrator is only needed for
// adaptive comparisons.
func NewComparator(runner Runner, calibrator *Calibrator) *Comparator {
	return &Comparator{Runner: runner, Calibrator: calibrator}
}

// NewHostComparator wires a comparator to a fresh host executor.
func NewHostComparator() *Comparator {
	exec := NewExecutor()
	return NewComparator(exec, NewCalibrator(exec, exec.Clock))
}

// Compare measures a then b and compares them.
func (c *Comparator) Compare(ctx context.Context, a, b Named, opts CompareOptions) (Comparison, error) {
	ranking, err := c.CompareMany(ctx, []Named{a, b}, opts)
	if err != nil {
		return Comparison{}, err
	}
	return ranking.Comparisons[0], nil
}

// CompareMany measures every benchmark in order and compares all n·(n−1)/2
// pairs.
func (c *Comparator) CompareMany(ctx context.Context, benchmarks []Named, opts CompareOptions) (Ranking, error) {
	if len(benchmarks) < 2 {
		return Ranking{}, fmt.Errorf("%w: need at least two benchmarks, got %d", ErrInvalidOptions, len(benchmarks))
	}

	names := make([]string, 0, len(benchmarks))
	results := make(map[string]BenchmarkResult, len(benchmarks))
	for _, b := range benchmarks {
		if _, dup := results[b.Name]; dup {
			return Ranking{}, fmt.Errorf("%w: duplicate benchmark name %q", ErrInvalidOptions, b.Name)
		}
		res, err := c.measure(ctx, b.Fn, opts)
		if err != nil {
			return Ranking{}, fmt.Errorf("benchmark %s: %w", b.Name, err)
		}
		names = append(names, b.Name)
		results[b.Name] = res
	}

	return RankResults(names, results), nil
}

func (c *Comparator) measure(ctx context.Context, fn Func, opts CompareOptions) (BenchmarkResult, error) {
	if opts.Adaptive {
		if c.Calibrator == nil {
			return BenchmarkResult{}, fmt.Errorf("%w: adaptive comparison without a calibrator", ErrInvalidOptions)
		}
		res, err := c.Calibrator.RunAdaptive(ctx, fn, opts.Calibration)
		if err != nil {
			return BenchmarkResult{}, err
		}
		return res.BenchmarkResult, nil
	}
	return c.Runner.RunContext(ctx, fn, opts.Run)
}

// CompareResults compares two measured results. Equal durations favour a.
func CompareResults(nameA string, a BenchmarkResult, nameB string, b BenchmarkResult) Comparison {
	c := Comparison{
		A:           nameA,
		B:           nameB,
		TimeRatio:   ratio(a.Duration, b.Duration),
		OpsRatio:    ratio(a.OpsPerSecond, b.OpsPerSecond),
		MemoryRatio: ratio(float64(a.Memory.HeapUsed), float64(b.Memory.HeapUsed)),
	}

	fast, slow := a.Duration, b.Duration
	c.Faster, c.Slower = nameA, nameB
	if b.Duration < a.Duration {
		fast, slow = b.Duration, a.Duration
		c.Faster, c.Slower = nameB, nameA
	}
	if fast > 0 {
		c.PercentFaster = (slow/fast - 1) * 100
	}
	return c
}

// RankResults compares every pair in names order and picks the fastest and
// slowest by duration. Ties go to the first name seen.
func RankResults(names []string, results map[string]BenchmarkResult) Ranking {
	r := Ranking{
		Order:   append([]string(nil), names...),
		Results: results,
	}
	if len(names) == 0 {
		return r
	}

	r.Fastest, r.Slowest = names[0], names[0]
	for i, a := range names {
		ra := results[a]
		if ra.Duration < results[r.Fastest].Duration {
			r.Fastest = a
		}
		if ra.Duration > results[r.Slowest].Duration {
			r.Slowest = a
		}
		for _, b := range names[i+1:] {
			r.Comparisons = append(r.Comparisons, CompareResults(a, ra, b, results[b]))
		}
	}
	return r
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
