package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// NewLogger builds a JSON logger writing to out and, when logFile is set, to
// that file as well. A nil out silences the console; with no sink at all the
// logger discards everything.
func NewLogger(debug bool, logFile string, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}

	var sinks fanout
	if out != nil {
		sinks = append(sinks, slog.NewJSONHandler(out, opts))
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			slog.Error("Failed to open log file", "path", logFile, "error", err)
		} else {
			sinks = append(sinks, slog.NewJSONHandler(f, opts))
		}
	}

	switch len(sinks) {
	case 0:
		return slog.New(slog.NewJSONHandler(io.Discard, opts))
	case 1:
		return slog.New(sinks[0])
	}
	return slog.New(sinks)
}

// InitLogger configures the default logger. The CLI passes stderr so stdout
// carries only reports and, in worker processes, the message protocol.
func InitLogger(debug bool, logFile string, out io.Writer) {
	slog.SetDefault(NewLogger(debug, logFile, out))
}

// ForComponent tags every record of logger with the emitting component.
func ForComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}

// fanout sends each record to every handler. All handlers see the record
// even if an earlier one fails; the errors are joined.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(wrap func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = wrap(h)
	}
	return out
}

// LogInfof logs an info message with formatting.
func LogInfof(format string, args ...any) {
	if slog.Default().Enabled(context.Background(), slog.LevelInfo) {
		slog.Info(fmt.Sprintf(format, args...))
	}
}
