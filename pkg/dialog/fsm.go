package dialog

import "time"

// State is the conceptual dialogue state of a session.
type State string

const (
	// StateIdle means no intent is being filled.
	StateIdle State = "idle"
	// StateCollecting means an active intent still has missing required slots.
	StateCollecting State = "collecting"
	// StateComplete is the terminal state of one fill; the session returns to
	// idle within the same turn.
	StateComplete State = "complete"
)

func (s State) String() string { return string(s) }

// StateChange represents one dialogue state transition.
type StateChange struct {
	UserID    string
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// StateListener observes dialogue state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

var validTransitions = map[State][]State{
	StateIdle:       {StateCollecting, StateComplete},
	StateCollecting: {StateCollecting, StateComplete, StateIdle},
	StateComplete:   {StateIdle},
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid dialogue transition from " + e.From.String() + " to " + e.To.String()
}
