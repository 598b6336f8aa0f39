package analyzer

// ChunkState is the lifecycle of one chunk within an analysis
type ChunkState int

// Chunk states. Succeeded and Failed are terminal.
const (
	StatePending ChunkState = iota
	StateInFlight
	StateSucceeded
	StateFailed
)

func (s ChunkState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen
func (s ChunkState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// ProgressEvent describes one chunk state transition
type ProgressEvent struct {
	Position int
	State    ChunkState
	Err      error // set when State is StateFailed
	Done     int   // chunks in a terminal state, including this one
	Total    int
}

// ProgressFunc receives state transitions. Calls are serialized.
type ProgressFunc func(ProgressEvent)
