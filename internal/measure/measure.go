// Package measure provides the host measurement primitives: a monotonic
// millisecond clock, memory snapshots and a best-effort GC hint.
package measure

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrGCUnavailable is returned by a GCHint that cannot trigger a collection.
var ErrGCUnavailable = errors.New("gc hint unavailable")

// Clock returns monotonic elapsed time in milliseconds.
type Clock interface {
	Now() float64
}

// MonotonicClock measures milliseconds elapsed since it was created.
type MonotonicClock struct {
	origin time.Time
}

// NewMonotonicClock creates a clock anchored at the current instant.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

// Now returns the elapsed milliseconds using the monotonic clock reading.
func (c *MonotonicClock) Now() float64 {
	return float64(time.Since(c.origin).Nanoseconds()) / 1e6
}

// MemorySnapshot is a point-in-time memory reading in bytes.
type MemorySnapshot struct {
	HeapUsed  uint64 `json:"heap_used" yaml:"heap_used"`
	HeapTotal uint64 `json:"heap_total" yaml:"heap_total"`
	RSS       uint64 `json:"rss" yaml:"rss"`
	External  uint64 `json:"external" yaml:"external"`
}

// MemoryDelta is the signed difference between two snapshots.
type MemoryDelta struct {
	RSS       int64 `json:"rss" yaml:"rss"`
	HeapUsed  int64 `json:"heap_used" yaml:"heap_used"`
	HeapTotal int64 `json:"heap_total" yaml:"heap_total"`
	External  int64 `json:"external" yaml:"external"`
}

// Diff returns after minus before for every dimension.
func Diff(before, after MemorySnapshot) MemoryDelta {
	return MemoryDelta{
		RSS:       int64(after.RSS) - int64(before.RSS),
		HeapUsed:  int64(after.HeapUsed) - int64(before.HeapUsed),
		HeapTotal: int64(after.HeapTotal) - int64(before.HeapTotal),
		External:  int64(after.External) - int64(before.External),
	}
}

// Sampler takes memory snapshots on demand.
type Sampler interface {
	Snapshot() MemorySnapshot
}

// RuntimeSampler reads the Go runtime statistics and the process RSS.
type RuntimeSampler struct {
	proc     *process.Process
	warnOnce sync.Once
}

// NewRuntimeSampler creates a sampler for the current process. RSS falls
// back to the runtime's total obtained memory when the OS reading fails.
func NewRuntimeSampler() *RuntimeSampler {
	s := &RuntimeSampler{}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = p
	}
	return s
}

// Snapshot implements Sampler.
func (s *RuntimeSampler) Snapshot() MemorySnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := MemorySnapshot{
		HeapUsed:  ms.HeapAlloc,
		HeapTotal: ms.HeapSys,
		RSS:       ms.Sys,
		External:  ms.Sys - ms.HeapSys,
	}

	if s.proc != nil {
		info, err := s.proc.MemoryInfo()
		if err == nil {
			snap.RSS = info.RSS
			return snap
		}
		s.warnOnce.Do(func() {
			slog.Warn("process RSS unavailable, using runtime total", "error", err)
		})
	}
	return snap
}

// GCHint asks the runtime for a garbage collection. Any error means the
// capability is unavailable; callers must continue regardless.
type GCHint func() error

// RuntimeGC forces a collection with runtime.GC.
func RuntimeGC() error {
	runtime.GC()
	return nil
}

// NoGC is a GCHint for hosts without a collection trigger.
func NoGC() error {
	return ErrGCUnavailable
}
