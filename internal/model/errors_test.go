package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaleStateError_WrongState(t *testing.T) {
	err := &StaleStateError{
		RequestID: "req-1",
		Expected:  StatePendingApproval,
		Current:   StateApproved,
		Target:    StateRejected,
	}
	assert.Contains(t, err.Error(), "req-1")
	assert.Contains(t, err.Error(), "APPROVED")
	assert.Contains(t, err.Error(), "PENDING_APPROVAL")
}

func TestStaleStateError_UndefinedEdge(t *testing.T) {
	err := &StaleStateError{
		RequestID: "req-2",
		Expected:  StatePublished,
		Current:   StatePublished,
		Target:    StateApproved,
	}
	assert.Contains(t, err.Error(), "no edge")
}

func TestIsStaleState(t *testing.T) {
	base := &StaleStateError{RequestID: "req-3", Expected: StateDrafted, Current: StateDrafted, Target: StateFailed}

	assert.True(t, IsStaleState(base))
	assert.True(t, IsStaleState(fmt.Errorf("decide: %w", base)))
	assert.False(t, IsStaleState(errors.New("unrelated")))
	assert.False(t, IsStaleState(nil))
}
