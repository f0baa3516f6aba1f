package model

// transitions is the complete edge set of the request state machine.
//
// DRAFTED and PENDING_APPROVAL wait on an external actor (moderation
// verdict, reviewer). PUBLISHING is a lease state: the publisher holds
// it for a bounded time and the sweeper returns expired leases to
// APPROVED. Terminal states have no outgoing edges.
var transitions = map[State][]State{
	StateDrafted:         {StatePendingApproval, StateRejected},
	StatePendingApproval: {StateApproved, StateRejected},
	StateApproved:        {StatePublishing},
	StatePublishing:      {StatePublished, StateFailed, StateApproved},
	StateRejected:        nil,
	StatePublished:       nil,
	StateFailed:          nil,
}

// States lists every state, in lifecycle order.
func States() []State {
	return []State{
		StateDrafted,
		StatePendingApproval,
		StateApproved,
		StateRejected,
		StatePublishing,
		StatePublished,
		StateFailed,
	}
}

// ValidState reports whether s is a known state.
func ValidState(s State) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from -> to is a defined edge.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing edges.
func IsTerminal(s State) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// TerminalStates returns the terminal states.
func TerminalStates() []State {
	var out []State
	for _, s := range States() {
		if IsTerminal(s) {
			out = append(out, s)
		}
	}
	return out
}
