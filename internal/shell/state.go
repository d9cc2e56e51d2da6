package shell

// State is a Shell lifecycle phase. Transitions only move forward:
// Created → Initializing → Running → Stopping → Stopped.
type State int32

const (
	Created State = iota
	Initializing
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
