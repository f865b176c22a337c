package isolate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"calibench/internal/benchmark"
)

// Handler is the context side of the protocol. It turns one RunRequest into
// exactly one reply.
type Handler struct {
	Registry *benchmark.Registry
	Runner   benchmark.Runner
	Logger   *slog.Logger
}

// NewHandler builds a handler that measures with a fresh host executor.
func NewHandler(registry *benchmark.Registry, logger *slog.Logger) *Handler {
	exec := benchmark.NewExecutor()
	exec.Logger = logger
	return &Handler{Registry: registry, Runner: exec, Logger: logger}
}

// Handle resolves, warms up and measures the requested benchmark. Every
// failure, including a panic in the benchmark, becomes an ErrorReport.
func (h *Handler) Handle(ctx context.Context, req RunRequest) (reply Message) {
	defer func() {
		if r := recover(); r != nil {
			reply = ErrorReport{Message: fmt.Sprintf("benchmark %s panicked: %v", req.Benchmark, r)}
		}
	}()

	if err := ValidateIdentifier(req.Benchmark); err != nil {
		return ErrorReport{Message: err.Error()}
	}
	if h.Registry == nil {
		return ErrorReport{Message: "no benchmark registry in context"}
	}

	if req.Tuning.requested() {
		// Priority and affinity are per OS thread. The goroutine stays locked
		// after returning so the tuned thread is never handed back to the
		// scheduler; it exits with the goroutine or the worker process.
		runtime.LockOSThread()
		req.Tuning.Apply(h.logger())
	}

	fn, err := h.Registry.Resolve(req.Benchmark, req.Source)
	if err != nil {
		return ErrorReport{Message: err.Error()}
	}

	opts := req.Options
	switch {
	case !req.Warmup:
		opts.WarmupRuns = 0
	case opts.WarmupRuns == 0:
		opts.WarmupRuns = 1
	}

	res, err := h.Runner.RunContext(ctx, fn, opts)
	if err != nil {
		return ErrorReport{Message: err.Error()}
	}
	res.Value = portableValue(res.Value)
	return ResultReport{Result: res}
}

// Serve reads a single message from r and writes the reply to w. Anything
// other than a RunRequest is answered with an ErrorReport.
func (h *Handler) Serve(ctx context.Context, r io.Reader, w io.Writer) (Message, error) {
	msg, err := Decode(r)
	if err != nil {
		reply := ErrorReport{Message: err.Error()}
		return reply, Encode(w, reply)
	}

	var reply Message
	switch m := msg.(type) {
	case RunRequest:
		reply = h.Handle(ctx, m)
	case ResultReport, ErrorReport:
		reply = ErrorReport{Message: fmt.Sprintf("%v: context received %s", ErrProtocol, m.messageType())}
	}
	return reply, Encode(w, reply)
}

// ServeFile serves the request materialised at path.
func (h *Handler) ServeFile(ctx context.Context, path string, w io.Writer) (Message, error) {
	f, err := os.Open(path)
	if err != nil {
		reply := ErrorReport{Message: fmt.Sprintf("open request: %v", err)}
		return reply, Encode(w, reply)
	}
	defer f.Close()
	return h.Serve(ctx, f, w)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// portableValue keeps a functional result only if it survives JSON.
func portableValue(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}
