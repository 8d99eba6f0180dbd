package stargo

import "errors"

var (
	// ErrCommunication is returned when the transport fails to transmit or receive.
	ErrCommunication = errors.New("communication failure")
	// ErrTimeout is returned when no genuine reply arrives within the wait budget.
	ErrTimeout = errors.New("timeout waiting for reply")
	// ErrParse is returned when a reply does not match the expected shape.
	ErrParse = errors.New("unexpected reply")
	// ErrRejected is returned when an operation is refused because of the
	// mount state or an out-of-range input.
	ErrRejected = errors.New("operation rejected")
)
