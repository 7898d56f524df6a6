package model

import "time"

// TickMsg drives the periodic refresh.
type TickMsg time.Time

// EngineActionResultMsg reports the outcome of a start or stop request.
type EngineActionResultMsg struct {
	Action string
	Err    error
}

// ClearStatusBarMsg clears the status bar if it still shows message ID.
type ClearStatusBarMsg struct {
	ID int
}
