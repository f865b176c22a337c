//go:build linux

package isolate

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"calibench/internal/benchmark"
)

func TestPinCPU(t *testing.T) {
	errs := make(chan error, 1)
	var pinned unix.CPUSet

	go func() {
		runtime.LockOSThread()
		if err := pinCPU(7); err != nil {
			errs <- err
			return
		}
		errs <- unix.SchedGetaffinity(0, &pinned)
	}()

	require.NoError(t, <-errs)
	assert.Equal(t, 1, pinned.Count())
}

// The handler must measure on the thread it tuned, even when its caller
// never locked one.
func TestHandle_TunesTheMeasuringThread(t *testing.T) {
	type observation struct {
		tid  int
		cpus int
	}
	var seen []observation

	registry := benchmark.NewRegistry()
	registry.MustRegister("spy", func(string) (benchmark.Func, error) {
		return func() any {
			var set unix.CPUSet
			_ = unix.SchedGetaffinity(0, &set)
			seen = append(seen, observation{tid: unix.Gettid(), cpus: set.Count()})
			runtime.Gosched()
			return nil
		}, nil
	})
	h := NewHandler(registry, nil)

	replies := make(chan Message, 1)
	go func() {
		replies <- h.Handle(context.Background(), RunRequest{
			Benchmark: "spy",
			Options:   benchmark.Options{Iterations: 2000, WarmupRuns: 1},
			Warmup:    true,
			Tuning:    Tuning{IsolateCPU: true, CPU: 0},
		})
	}()

	reply := <-replies
	require.IsType(t, ResultReport{}, reply)
	require.NotEmpty(t, seen)

	tids := map[int]bool{}
	for _, o := range seen {
		tids[o.tid] = true
		assert.Equal(t, 1, o.cpus, "iteration ran on an unpinned thread")
	}
	assert.Len(t, tids, 1, "measured iterations moved between threads")
}
