package subpub

// State is the lifecycle stage of a broker or connection. It only ever moves
// forward: Running, then Draining, then Closed.
type State int

const (
	StateRunning State = iota
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateDraining:
		return "DRAINING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// advance moves s to next and reports whether it changed. Backward or
// repeated transitions are refused.
func (s *State) advance(next State) bool {
	if next <= *s {
		return false
	}
	*s = next
	return true
}
