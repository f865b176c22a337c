package isolate

import (
	"context"
	"os"
	"testing"
	"time"

	"calibench/internal/benchmark"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHelperLauncher(t *testing.T, mode string) *ProcessLauncher {
	t.Helper()
	if testing.Short() {
		t.Skip("spawns processes")
	}
	return &ProcessLauncher{
		Env:     []string{helperEnv + "=" + mode},
		TempDir: t.TempDir(),
	}
}

func assertNoArtifacts(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "context artifacts must be removed")
}

func TestProcessLauncher_Result(t *testing.T) {
	l := newHelperLauncher(t, "serve")

	msg, err := l.Launch(context.Background(), 0, RunRequest{
		Benchmark: "sum",
		Source:    "10",
		Options:   benchmark.Options{Iterations: 100},
	})
	require.NoError(t, err)

	report, ok := msg.(ResultReport)
	require.True(t, ok, "got %#v", msg)
	assert.Equal(t, 100, report.Result.Iterations)
	assert.Equal(t, float64(45), report.Result.Value)
	assertNoArtifacts(t, l.TempDir)
}

func TestProcessLauncher_ErrorReport(t *testing.T) {
	l := newHelperLauncher(t, "serve")

	msg, err := l.Launch(context.Background(), 1, RunRequest{
		Benchmark: "missing",
		Options:   benchmark.Options{Iterations: 1},
	})
	require.NoError(t, err, "a non-zero exit after a report is still a report")

	report, ok := msg.(ErrorReport)
	require.True(t, ok)
	assert.Contains(t, report.Message, "unknown benchmark")
	assertNoArtifacts(t, l.TempDir)
}

func TestProcessLauncher_AbnormalExit(t *testing.T) {
	l := newHelperLauncher(t, "crash")

	_, err := l.Launch(context.Background(), 2, RunRequest{Benchmark: "sum", Options: benchmark.Options{Iterations: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited abnormally")
	assert.Contains(t, err.Error(), "crashed on purpose")
	assertNoArtifacts(t, l.TempDir)
}

func TestProcessLauncher_CancelledContext(t *testing.T) {
	l := newHelperLauncher(t, "serve")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Launch(ctx, 0, RunRequest{Benchmark: "sum", Options: benchmark.Options{Iterations: 1}})
	assert.ErrorIs(t, err, context.Canceled)
	assertNoArtifacts(t, l.TempDir)
}

func TestOrchestrator_ProcessContexts(t *testing.T) {
	l := newHelperLauncher(t, "serve")
	o := &Orchestrator{Launcher: l, ProcessCount: 3, Timeout: time.Minute}

	res, err := o.Run(context.Background(), RunRequest{
		Benchmark: "sum",
		Source:    "20",
		Options:   benchmark.Options{Iterations: 500},
		Warmup:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 500, res.Iterations)
	assert.Greater(t, res.Duration, 0.0)
	assertNoArtifacts(t, l.TempDir)
}

func TestOrchestrator_ProcessContextFailure(t *testing.T) {
	l := newHelperLauncher(t, "serve")
	o := &Orchestrator{Launcher: l, ProcessCount: 3, Timeout: time.Minute}

	_, err := o.Run(context.Background(), RunRequest{Benchmark: "explode", Options: benchmark.Options{Iterations: 1}})
	assert.ErrorIs(t, err, ErrContextFailed)
	assert.ErrorContains(t, err, "kaboom")
	assertNoArtifacts(t, l.TempDir)
}

func TestWorkerLauncher_NoHandler(t *testing.T) {
	_, err := (&WorkerLauncher{}).Launch(context.Background(), 0, RunRequest{})
	assert.Error(t, err)
}

func TestNewLauncher(t *testing.T) {
	assert.Equal(t, ModeWorker, NewLauncher(true, testRegistry(), nil).Mode())
	assert.Equal(t, ModeProcess, NewLauncher(false, testRegistry(), nil).Mode())
}
