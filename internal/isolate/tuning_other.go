//go:build !linux

package isolate

func raisePriority() error { return ErrTuningUnsupported }

func pinCPU(int) error { return ErrTuningUnsupported }
