package xstage

// State is the lifecycle state of a Stage.
type State uint8

const (
	// Unconfigured is the initial state. The next Process call runs
	// configuration.
	Unconfigured State = iota

	// Configured is the steady state for repeated Process calls.
	Configured

	// Terminated is final. Process fails with ErrInvalidState.
	Terminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unconfigured:
		return "Unconfigured"
	case Configured:
		return "Configured"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}
