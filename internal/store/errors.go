package store

import "errors"

var (
	// ErrNotFound is returned when no request exists for the given ID.
	ErrNotFound = errors.New("request not found")

	// ErrDuplicateActive is returned when a request is created for a
	// source item that already has a non-terminated request. This is the
	// exactly-once admission invariant surfacing as an error.
	ErrDuplicateActive = errors.New("active request already exists for source item")
)
