package jobs

import "strings"

// State is the normalized job lifecycle state. Server responses use a wider
// vocabulary that collapses into these values.
type State string

const (
	StateNone      State = "none"
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateFinished  State = "finished"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

// Normalize maps a server status string onto the lifecycle states.
func Normalize(raw string) State {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return StateNone
	case "finished", "complete", "completed", "done":
		return StateFinished
	case "error", "failed":
		return StateError
	case "cancelled", "canceled":
		return StateCancelled
	case "running", "processing":
		return StateRunning
	default:
		return StatePending
	}
}

// Terminal reports whether the state ends polling.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateError || s == StateCancelled
}

// Failed reports whether the state is a failure terminal.
func (s State) Failed() bool {
	return s == StateError || s == StateCancelled
}
