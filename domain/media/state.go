package media

import "fmt"

// PipelineState is the lifecycle state of a pipeline controller
type PipelineState int32

const (
	StateIdle PipelineState = iota
	StateRunning
	StatePaused
	StateStopping
	StateStopped
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CanTransition reports whether from -> to is a legal transition
func CanTransition(from, to PipelineState) bool {
	switch from {
	case StateIdle:
		// Stopping from Idle is how a failed start releases what it acquired
		return to == StateRunning || to == StateStopping
	case StateRunning:
		return to == StatePaused || to == StateStopping
	case StatePaused:
		return to == StateRunning || to == StateStopping
	case StateStopping:
		return to == StateStopped
	default:
		return false
	}
}
