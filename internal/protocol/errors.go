package protocol

import "fmt"

// ErrorCode classifies a protocol error on the wire.
type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeRoomNotFound     ErrorCode = "ROOM_NOT_FOUND"
	CodeReceiverNotFound ErrorCode = "RECEIVER_NOT_FOUND"
	CodeRoomFull         ErrorCode = "ROOM_FULL"
	CodeRoleViolation    ErrorCode = "ROLE_VIOLATION"
	CodeUnknownType      ErrorCode = "UNKNOWN_MESSAGE_TYPE"
)

// Error is both a Go error and the single error envelope sent to clients:
// {"type":"error","code":...,"message":...}.
type Error struct {
	Type    MessageType `json:"type"`
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a protocol error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Type: TypeError, Code: code, Message: fmt.Sprintf(format, args...)}
}
