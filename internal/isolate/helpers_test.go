package isolate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"

	"calibench/internal/benchmark"
)

// helperEnv turns the test binary into a context process.
const helperEnv = "CALIBENCH_ISOLATE_HELPER"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) != "" {
		os.Exit(runHelper(os.Getenv(helperEnv)))
	}
	os.Exit(m.Run())
}

func runHelper(mode string) int {
	var path string
	for i, arg := range os.Args {
		if arg == "--request" && i+1 < len(os.Args) {
			path = os.Args[i+1]
		}
	}

	switch mode {
	case "crash":
		fmt.Fprintln(os.Stderr, "context crashed on purpose")
		return 3
	}

	h := NewHandler(testRegistry(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	reply, err := h.ServeFile(context.Background(), path, os.Stdout)
	if err != nil {
		return 2
	}
	if _, ok := reply.(ErrorReport); ok {
		return 1
	}
	return 0
}

func testRegistry() *benchmark.Registry {
	r := benchmark.NewRegistry()
	r.MustRegister("sum", func(source string) (benchmark.Func, error) {
		n := 100
		if source != "" {
			v, err := strconv.Atoi(source)
			if err != nil {
				return nil, fmt.Errorf("sum: bad source %q: %w", source, err)
			}
			n = v
		}
		return func() any {
			total := 0
			for i := 0; i < n; i++ {
				total += i
			}
			return total
		}, nil
	})
	r.MustRegister("explode", func(string) (benchmark.Func, error) {
		return func() any { panic("kaboom") }, nil
	})
	return r
}

// recordingRunner records the options it was asked to run with.
type recordingRunner struct {
	mu   sync.Mutex
	opts []benchmark.Options
	res  benchmark.BenchmarkResult
	err  error
}

func (r *recordingRunner) RunContext(_ context.Context, fn benchmark.Func, opts benchmark.Options) (benchmark.BenchmarkResult, error) {
	r.mu.Lock()
	r.opts = append(r.opts, opts)
	r.mu.Unlock()
	if r.err != nil {
		return benchmark.BenchmarkResult{}, r.err
	}
	res := r.res
	res.Iterations = opts.Iterations
	res.Value = fn()
	return res, nil
}

// fakeLauncher answers each context through reply.
type fakeLauncher struct {
	mu       sync.Mutex
	launched []int
	requests []RunRequest
	reply    func(ctx context.Context, index int) (Message, error)
}

func (l *fakeLauncher) Mode() string { return "fake" }

func (l *fakeLauncher) Launch(ctx context.Context, index int, req RunRequest) (Message, error) {
	l.mu.Lock()
	l.launched = append(l.launched, index)
	l.requests = append(l.requests, req)
	l.mu.Unlock()
	return l.reply(ctx, index)
}

func resultFor(duration float64) benchmark.BenchmarkResult {
	return benchmark.BenchmarkResult{
		Duration:     duration,
		Iterations:   1000,
		OpsPerSecond: 1000 / (duration / 1000),
	}
}
