package isolate

import (
	"log/slog"

	"calibench/internal/telemetry"
)

// Tuning asks a context to raise its scheduling priority and pin itself to
// one CPU. Both are best effort.
type Tuning struct {
	Prioritize bool `json:"prioritize" yaml:"prioritize"`
	IsolateCPU bool `json:"isolate_cpu" yaml:"isolate_cpu"`

	// CPU selects the n-th CPU of the allowed set, modulo its size.
	CPU int `json:"cpu" yaml:"cpu"`
}

func (t Tuning) requested() bool { return t.Prioritize || t.IsolateCPU }

// Apply tunes the calling OS thread. Failures are logged and ignored.
func (t Tuning) Apply(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if t.Prioritize {
		if err := raisePriority(); err != nil {
			telemetry.TrackTuningFailure("priority")
			logger.Warn("could not raise scheduling priority", "error", err)
		}
	}
	if t.IsolateCPU {
		if err := pinCPU(t.CPU); err != nil {
			telemetry.TrackTuningFailure("affinity")
			logger.Warn("could not pin context to a CPU", "cpu", t.CPU, "error", err)
		}
	}
}
