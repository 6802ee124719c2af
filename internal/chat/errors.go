package chat

import (
	"errors"
	"fmt"
)

// Failures of a single join/send/leave. None of them closes the connection.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnidentified    = fmt.Errorf("%w: identity carries no id", ErrUnauthenticated)
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotJoined       = fmt.Errorf("%w: connection has not joined the room", ErrUnauthorized)
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrStorageFailure  = errors.New("storage failure")
	ErrDisconnected    = errors.New("connection closed")
)

// ErrorCode is the error event code reported to clients for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrStorageFailure):
		return "storage_failure"
	case errors.Is(err, ErrDisconnected):
		return "disconnected"
	default:
		return "internal"
	}
}
