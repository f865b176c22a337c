package benchmark

import (
	"context"

	"calibench/internal/measure"
)

// fakeClock is advanced explicitly by the code under test.
type fakeClock struct {
	now float64
}

func (c *fakeClock) Now() float64 { return c.now }

// stepClock advances by step on every reading.
type stepClock struct {
	now  float64
	step float64
}

func (c *stepClock) Now() float64 {
	c.now += c.step
	return c.now
}

// seqSampler returns its snapshots in order, repeating the last one.
type seqSampler struct {
	snaps []measure.MemorySnapshot
	i     int
}

func (s *seqSampler) Snapshot() measure.MemorySnapshot {
	snap := s.snaps[s.i]
	if s.i < len(s.snaps)-1 {
		s.i++
	}
	return snap
}

// fakeRunner charges cost(call, fn) milliseconds per iteration and advances
// the shared clock by the run's duration.
type fakeRunner struct {
	clock      *fakeClock
	cost       func(call int, fn Func) float64
	calls      int
	iterations []int
	failAt     int
	err        error
}

func (r *fakeRunner) RunContext(ctx context.Context, fn Func, opts Options) (BenchmarkResult, error) {
	if err := opts.Validate(); err != nil {
		return BenchmarkResult{}, err
	}
	r.calls++
	r.iterations = append(r.iterations, opts.Iterations)
	if r.failAt > 0 && r.calls == r.failAt {
		return BenchmarkResult{}, r.err
	}
	d := float64(opts.Iterations) * r.cost(r.calls, fn)
	r.clock.now += d
	return BenchmarkResult{
		Duration:     d,
		Iterations:   opts.Iterations,
		OpsPerSecond: opsPerSecond(opts.Iterations, d),
		Memory:       measure.MemoryDelta{HeapUsed: int64(opts.Iterations)},
	}, nil
}

func constantCost(ms float64) func(int, Func) float64 {
	return func(int, Func) float64 { return ms }
}

// costFromFn uses the float64 returned by the benchmark function as its
// per-iteration cost.
func costFromFn(_ int, fn Func) float64 {
	return fn().(float64)
}
