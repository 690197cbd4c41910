package domain

import "fmt"

// ValidationError reports malformed input rejected before any state is persisted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports a lookup for an unknown analysis id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("analysis %s not found", e.ID)
}

// WorkerExecutionError means the external worker could not start, exited
// abnormally or was killed.
type WorkerExecutionError struct {
	Worker   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *WorkerExecutionError) Error() string {
	msg := fmt.Sprintf("%s worker failed", e.Worker)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += " (stderr: " + e.Stderr + ")"
	}
	return msg
}

func (e *WorkerExecutionError) Unwrap() error {
	return e.Err
}

// WorkerProtocolError means the worker ran but its final output line was not
// the expected JSON document.
type WorkerProtocolError struct {
	Worker   string
	LastLine string
	Err      error
}

func (e *WorkerProtocolError) Error() string {
	msg := fmt.Sprintf("%s worker returned invalid output", e.Worker)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WorkerProtocolError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a store failure with the operation that caused it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
