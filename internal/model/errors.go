package model

import (
	"errors"
	"fmt"
)

// StaleStateError reports a transition attempted from the wrong state:
// either the persisted state no longer matches what the caller observed
// (a concurrent actor won the race) or the requested edge is not defined.
//
// Callers must not retry blindly; the correct response is to re-read the
// request and decide whether the operation still applies.
type StaleStateError struct {
	RequestID string
	Expected  State
	Current   State
	Target    State
}

// Error implements the error interface.
func (e *StaleStateError) Error() string {
	if e.Expected != e.Current {
		return fmt.Sprintf("stale state: request %s is %s, not %s (wanted %s -> %s)",
			e.RequestID, e.Current, e.Expected, e.Expected, e.Target)
	}
	return fmt.Sprintf("stale state: request %s has no edge %s -> %s",
		e.RequestID, e.Current, e.Target)
}

// IsStaleState reports whether err is (or wraps) a StaleStateError.
func IsStaleState(err error) bool {
	var se *StaleStateError
	return errors.As(err, &se)
}
