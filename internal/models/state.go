package models

// State is the lifecycle of a History row.
type State string

const (
	StateDraft     State = "draft"
	StateSent      State = "sent"
	StateDelivered State = "delivered"
	StateRead      State = "read"
	StateFailed    State = "failed"
)

// States in display order.
var States = []State{StateDraft, StateSent, StateDelivered, StateRead, StateFailed}

var transitions = map[State][]State{
	StateDraft:     {StateSent, StateFailed},
	StateSent:      {StateDelivered, StateRead, StateFailed},
	StateDelivered: {StateRead, StateFailed},
	StateFailed:    {StateSent, StateFailed},
	StateRead:      nil,
}

// CanTransition reports whether a row in state from may move to state to.
// failed -> failed is allowed so a retry can replace the error text.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ParseState returns the State for s, or false if s is not a known state.
func ParseState(s string) (State, bool) {
	for _, st := range States {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}
