package collab

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTransient and ErrPermanent are the sentinel errors adapters use to
// classify collaborator failures. Transient failures (network, rate limit,
// timeout) are retried by the owning component; permanent failures
// (content rejected, authentication) terminate the request.
var (
	ErrTransient = errors.New("transient collaborator error")
	ErrPermanent = errors.New("permanent collaborator error")
)

// WrapTransient annotates an error so callers can detect transient failures.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// WrapPermanent annotates an error as permanent.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}

// IsTransient reports whether err should be retried. Context deadline
// expiry and network timeouts count as transient even when the adapter
// did not wrap them.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsPermanent reports whether err is a terminal failure.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
