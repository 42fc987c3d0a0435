package scheduler

import "fmt"

// PanicError reports a panic recovered from a fetch or process function.
//
// The full stack trace is logged together with CorrelationID when the panic
// is recovered, so the error itself stays short enough to surface to users.
type PanicError struct {
	// CorrelationID ties this error to the logged stack trace.
	CorrelationID string

	// Op is "fetch" or "process".
	Op string

	// Key is the claimed offset or index.
	Key int

	// Value is the value passed to panic.
	Value any

	// Stack is the goroutine stack at the point of recovery.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panic at key %d (correlation_id: %s): %v", e.Op, e.Key, e.CorrelationID, e.Value)
}

// Unwrap returns the panic value when it is an error, so errors.Is and
// errors.As see through the recovery.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
