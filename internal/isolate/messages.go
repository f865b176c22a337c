package isolate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"calibench/internal/benchmark"
)

// ErrProtocol reports a malformed or unexpected message.
var ErrProtocol = errors.New("isolation protocol error")

const (
	typeRunRequest   = "run_request"
	typeResultReport = "result_report"
	typeErrorReport  = "error_report"
)

// Message is one of RunRequest, ResultReport or ErrorReport.
type Message interface {
	messageType() string
}

// RunRequest is sent by the orchestrator to each context.
type RunRequest struct {
	Benchmark string            `json:"benchmark"`
	Source    string            `json:"source"`
	Options   benchmark.Options `json:"options"`
	Warmup    bool              `json:"warmup"`
	Tuning    Tuning            `json:"tuning"`
}

// ResultReport carries a successful measurement back.
type ResultReport struct {
	Result benchmark.BenchmarkResult `json:"result"`
}

// ErrorReport carries a context-side failure back.
type ErrorReport struct {
	Message string `json:"message"`
}

func (RunRequest) messageType() string   { return typeRunRequest }
func (ResultReport) messageType() string { return typeResultReport }
func (ErrorReport) messageType() string  { return typeErrorReport }

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode writes msg as a tagged JSON envelope followed by a newline.
func Encode(w io.Writer, msg Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrProtocol)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.messageType(), err)
	}
	return json.NewEncoder(w).Encode(envelope{Type: msg.messageType(), Payload: payload})
}

// Decode reads one envelope from r.
func Decode(r io.Reader) (Message, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	switch env.Type {
	case typeRunRequest:
		var m RunRequest
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	case typeResultReport:
		var m ResultReport
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	case typeErrorReport:
		var m ErrorReport
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrProtocol, env.Type)
	}
}

func decodePayload(env envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrProtocol, env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrProtocol, env.Type, err)
	}
	return nil
}
