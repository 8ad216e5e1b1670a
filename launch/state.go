package launch

// State is the launch pipeline's position. Transitions run strictly
// forward; Stop is valid from Spawning on and forces Exited.
type State int

const (
	StateIdle State = iota
	StateConfiguringTranslator
	StateConfiguringCompat
	StatePreparingBindings
	StateSpawning
	StateRunning
	StateExited
	StateFaulted
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConfiguringTranslator:
		return "ConfiguringTranslator"
	case StateConfiguringCompat:
		return "ConfiguringCompatibilityLayer"
	case StatePreparingBindings:
		return "PreparingBindings"
	case StateSpawning:
		return "Spawning"
	case StateRunning:
		return "Running"
	case StateExited:
		return "Exited"
	case StateFaulted:
		return "Faulted"
	default:
		return "unknown"
	}
}

// terminal reports whether the pipeline has finished.
func (s State) terminal() bool {
	return s == StateExited || s == StateFaulted
}

// stoppable reports whether Stop is a valid request in this state.
func (s State) stoppable() bool {
	return s == StateSpawning || s == StateRunning
}
