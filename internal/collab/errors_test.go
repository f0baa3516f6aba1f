package collab

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapTransient(t *testing.T) {
	err := WrapTransient(errors.New("connection reset"))
	assert.True(t, errors.Is(err, ErrTransient))
	assert.Contains(t, err.Error(), "connection reset")

	assert.True(t, errors.Is(WrapTransient(nil), ErrTransient))
}

func TestWrapPermanent(t *testing.T) {
	err := WrapPermanent(errors.New("invalid credentials"))
	assert.True(t, errors.Is(err, ErrPermanent))
	assert.Contains(t, err.Error(), "invalid credentials")

	assert.True(t, errors.Is(WrapPermanent(nil), ErrPermanent))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(WrapTransient(errors.New("boom"))))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("publish: %w", context.DeadlineExceeded)))
	assert.False(t, IsTransient(WrapPermanent(errors.New("boom"))))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.False(t, IsTransient(nil))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(WrapPermanent(errors.New("rejected"))))
	assert.True(t, IsPermanent(fmt.Errorf("outer: %w", ErrPermanent)))
	assert.False(t, IsPermanent(WrapTransient(errors.New("rejected"))))
	assert.False(t, IsPermanent(nil))
}

func TestClassificationsAreExclusive(t *testing.T) {
	// A wrapped error carries exactly one classification.
	terr := WrapTransient(errors.New("x"))
	perr := WrapPermanent(errors.New("x"))
	assert.False(t, IsPermanent(terr))
	assert.False(t, IsTransient(perr))
}
