package writer

// State is the lifecycle state of the consumer.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateClosed
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// validTransition encodes the one-way state machine:
// Idle -> Running -> Draining -> Closed, with Failed reachable from any
// live state. There is no way back from Closed or Failed.
func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRunning || to == StateFailed
	case StateRunning:
		return to == StateDraining || to == StateFailed
	case StateDraining:
		return to == StateClosed || to == StateFailed
	default:
		return false
	}
}
