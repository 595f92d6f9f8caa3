package registry

import "errors"

var (
	// ErrNotFound is returned when no job exists for an id.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned for state changes outside the job state machine.
	ErrInvalidTransition = errors.New("invalid transition")
)
