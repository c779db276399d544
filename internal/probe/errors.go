package probe

import (
	"errors"
	"fmt"
)

var (
	ErrSenderGone    = errors.New("sender disconnected")
	ErrTimeout       = errors.New("timeout")
	ErrRelayClosed   = errors.New("relay connection closed")
	ErrUnexpectedSDP = errors.New("unexpected session description")
	ErrICEFailed     = errors.New("ICE connection failed")
)

// Error records which step of the probe failed and for which receiver.
type Error struct {
	Op       string
	Receiver string
	Err      error
}

func (e *Error) Error() string {
	if e.Receiver != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Receiver, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func newReceiverError(op, receiver string, err error) *Error {
	return &Error{Op: op, Receiver: receiver, Err: err}
}
