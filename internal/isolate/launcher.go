package isolate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"calibench/internal/benchmark"
)

const (
	ModeWorker  = "worker"
	ModeProcess = "process"

	// WorkerCommand is the hidden subcommand a process context runs.
	WorkerCommand = "worker"

	requestFileName = "request.json"
	stderrTailBytes = 2048
)

// Launcher starts one isolated context, hands it req and waits for its
// single reply. An error means the context itself failed to report.
type Launcher interface {
	Launch(ctx context.Context, index int, req RunRequest) (Message, error)
	Mode() string
}

// NewLauncher picks a worker or process launcher. Process contexts re-enter
// the current binary through its hidden worker command.
func NewLauncher(useWorkerThreads bool, registry *benchmark.Registry, logger *slog.Logger) Launcher {
	if useWorkerThreads {
		return &WorkerLauncher{Handler: NewHandler(registry, logger)}
	}
	return &ProcessLauncher{Args: []string{WorkerCommand}, Logger: logger}
}

// WorkerLauncher runs each context on a goroutine locked to its own OS
// thread. The thread is never unlocked, so it exits with the goroutine and
// any tuning applied to it goes with it.
type WorkerLauncher struct {
	Handler *Handler
}

func (l *WorkerLauncher) Mode() string { return ModeWorker }

func (l *WorkerLauncher) Launch(ctx context.Context, index int, req RunRequest) (Message, error) {
	if l.Handler == nil {
		return nil, errors.New("worker launcher has no handler")
	}

	replies := make(chan Message, 1)
	go func() {
		runtime.LockOSThread()
		replies <- l.Handler.Handle(ctx, req)
	}()

	select {
	case msg := <-replies:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessLauncher runs each context as a child process of Executable (the
// running binary by default) with Args plus "--request <file>". The request
// file lives in a private temp dir that is removed on every path.
type ProcessLauncher struct {
	Executable string
	Args       []string
	Env        []string
	TempDir    string
	Logger     *slog.Logger
}

func (l *ProcessLauncher) Mode() string { return ModeProcess }

func (l *ProcessLauncher) Launch(ctx context.Context, index int, req RunRequest) (Message, error) {
	exe := l.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		exe = self
	}

	dir, err := os.MkdirTemp(l.TempDir, fmt.Sprintf("calibench-ctx%d-", index))
	if err != nil {
		return nil, fmt.Errorf("create context dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, requestFileName)
	if err := writeRequest(path, req); err != nil {
		return nil, err
	}

	args := append(append([]string{}, l.Args...), "--request", path)
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Env = append(os.Environ(), l.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.logger().Debug("starting context process", "context", index, "exe", exe, "request", path)
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// A child that reported an error may also exit non-zero; the report wins.
	msg, decodeErr := Decode(&stdout)
	if decodeErr == nil {
		return msg, nil
	}
	if runErr != nil {
		return nil, fmt.Errorf("process exited abnormally: %w%s", runErr, stderrTail(stderr.String()))
	}
	return nil, decodeErr
}

func (l *ProcessLauncher) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func writeRequest(path string, req RunRequest) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create request file: %w", err)
	}
	if err := Encode(f, req); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > stderrTailBytes {
		s = s[len(s)-stderrTailBytes:]
	}
	return ": " + s
}
