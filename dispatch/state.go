package dispatch

import "fmt"

// State tracks one dispatch request through its lifecycle. Transitions are
// validated so a terminal node can never be revived and an un-scoped node
// can never reach the model.
type State string

const (
	// StateRequested marks a freshly created dispatch request.
	StateRequested State = "requested"
	// StateScoped marks a request whose canon scope and toolset have been
	// computed.
	StateScoped State = "scoped"
	// StateInvoked marks a request whose model loop is running.
	StateInvoked State = "invoked"
	// StateDelegated marks a request that has spawned sub-dispatches and is
	// suspended at the join.
	StateDelegated State = "delegated"
	// StateCompleted marks a request that produced a final output.
	StateCompleted State = "completed"
	// StateFailed marks a request that terminated without an output.
	StateFailed State = "failed"
)

// String returns the state identifier.
func (s State) String() string { return string(s) }

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

var stateTransitions = map[State][]State{
	StateRequested: {StateScoped, StateFailed},
	StateScoped:    {StateInvoked, StateFailed},
	StateInvoked:   {StateDelegated, StateCompleted, StateFailed},
	StateDelegated: {StateInvoked, StateCompleted, StateFailed},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates and returns the next state.
func (s State) Transition(next State) (State, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal dispatch state transition %s -> %s", s, next)
	}
	return next, nil
}
