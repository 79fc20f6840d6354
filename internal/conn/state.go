package conn

// State is the connection manager's lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	// Closed is terminal: the manager was shut down or told to reload.
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// AllStates lists every state name, for metrics.
var AllStates = []string{
	Disconnected.String(),
	Connecting.String(),
	Open.String(),
	Closed.String(),
}
