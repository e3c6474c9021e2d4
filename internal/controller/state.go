// internal/controller/state.go
package controller

import "errors"

// State is the lifecycle of a control loop
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateTerminating
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyRunning = errors.New("haptic loop already running")
	ErrNotRunning     = errors.New("haptic loop not running")
	ErrNoTool         = errors.New("no tool device")
)
