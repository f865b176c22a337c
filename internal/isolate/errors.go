package isolate

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidIdentifier is returned before any context starts when a
	// benchmark identifier contains anything outside [A-Za-z0-9_$].
	ErrInvalidIdentifier = errors.New("invalid benchmark identifier")

	// ErrContextFailed matches every ContextFailure.
	ErrContextFailed = errors.New("isolated context failed")

	// ErrTuningUnsupported is returned by tuning on platforms without it.
	ErrTuningUnsupported = errors.New("context tuning not supported on this platform")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)

// ValidateIdentifier rejects identifiers that could smuggle code or shell
// syntax into a context.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// ContextFailure is an ErrorReport, an abnormal exit, a protocol violation
// or a timeout in one isolated context.
type ContextFailure struct {
	Context int
	Mode    string
	Message string
	Err     error
}

func (e *ContextFailure) Error() string {
	msg := fmt.Sprintf("%s context %d failed", e.Mode, e.Context)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ContextFailure) Unwrap() error { return e.Err }

func (e *ContextFailure) Is(target error) bool { return target == ErrContextFailed }
