package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Run while an engine is starting or running.
	ErrAlreadyRunning = errors.New("engine is already running")
	// ErrNotRunning is returned by Stop when there is nothing to stop.
	ErrNotRunning = errors.New("engine is not running")
)

// StartupError reports that the engine process could not be launched.
// The supervisor stays NotRunning.
type StartupError struct {
	Path string
	Err  error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("could not start engine %s: %v", e.Path, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}
