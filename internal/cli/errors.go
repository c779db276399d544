package cli

import (
	"errors"
	"fmt"
)

var (
	ErrRelayClosed = errors.New("relay closed the connection")
	ErrUnavailable = errors.New("relay unavailable")
	ErrTimeout     = errors.New("timeout")
	ErrProbeFailed = errors.New("probe failed")
)

// Error is a failed relayctl step.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
