package firehose

// State is the connection state of the supervisor
type State int32

// Supervisor states. Exhausted and Stopped are terminal.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateExhausted
	StateStopped
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateExhausted:
		return "exhausted"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the supervisor can no longer leave this state
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateStopped
}
