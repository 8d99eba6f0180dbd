package alpaca

import "errors"

// Error is an ASCOM error with its Alpaca error number.
type Error struct {
	Number  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrNotImplemented       = &Error{0x400, "not implemented"}
	ErrInvalidValue         = &Error{0x401, "invalid value"}
	ErrValueNotSet          = &Error{0x402, "value not set"}
	ErrNotConnected         = &Error{0x407, "not connected"}
	ErrInvalidWhileParked   = &Error{0x408, "invalid while parked"}
	ErrInvalidOperation     = &Error{0x40B, "invalid operation"}
	ErrActionNotImplemented = &Error{0x40C, "action not implemented"}
)

// unspecifiedError is reported for driver errors without an ASCOM number.
const unspecifiedError = 0x500

func errorNumber(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Number
	}
	return unspecifiedError
}
