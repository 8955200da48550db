package worker

import (
	"errors"
	"fmt"
)

var (
	// ErrNilSource is returned by New without a source.
	ErrNilSource = errors.New("worker source is nil")
	// ErrNilHandler is returned by New without a handler.
	ErrNilHandler = errors.New("worker handler is nil")
	// ErrHandlerPanicked marks a recovered panic from a handler or error handler.
	ErrHandlerPanicked = errors.New("handler panicked")
	// ErrAlreadyRunning is returned when Run is called on a worker that is running.
	ErrAlreadyRunning = errors.New("worker is already running")
)

// HandlerError is what the error handler receives when the handler fails.
// Value is the element that was being handled.
type HandlerError struct {
	Value any
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handling %v: %v", e.Value, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func panicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("%w: %w", ErrHandlerPanicked, err)
	}

	return fmt.Errorf("%w: %v", ErrHandlerPanicked, recovered)
}
