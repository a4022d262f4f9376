package pipeline

// State is a pipeline state machine state.
type State string

// Pipeline states. A run moves strictly forward; FAILED is reachable from every
// non-terminal state.
const (
	StateStart        State = "START"
	StatePlanning     State = "PLANNING"
	StateArchitecture State = "ARCHITECTURE"
	StateCoding       State = "CODING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// validTransitions defines the pipeline transition rules.
//
//nolint:gochecknoglobals // Intentional package-level constant for state machine definition
var validTransitions = map[State][]State{
	StateStart:        {StatePlanning, StateFailed},
	StatePlanning:     {StateArchitecture, StateFailed},
	StateArchitecture: {StateCoding, StateFailed},
	StateCoding:       {StateCoding, StateDone, StateFailed},
	StateDone:         {},
	StateFailed:       {},
}

// IsValidTransition checks if a state transition is allowed.
func IsValidTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// AllStates returns every pipeline state in order.
func AllStates() []State {
	return []State{StateStart, StatePlanning, StateArchitecture, StateCoding, StateDone, StateFailed}
}

// ValidNextStates returns the valid next states for a given state.
func ValidNextStates(from State) []State {
	return validTransitions[from]
}
