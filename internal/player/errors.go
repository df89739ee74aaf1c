package player

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeChannelSwitchRefused  ErrorCode = "channel_switch_refused"
	CodeUnknownEngine         ErrorCode = "unknown_engine"
	CodeStreamUnavailable     ErrorCode = "stream_unavailable"
	CodeInitialVolumeResolver ErrorCode = "initial_volume_resolver"
)

// Sentinels for errors.Is. A *Error matches the sentinel with the same code.
var (
	ErrChannelSwitchRefused  = &Error{Code: CodeChannelSwitchRefused}
	ErrUnknownEngine         = &Error{Code: CodeUnknownEngine}
	ErrStreamUnavailable     = &Error{Code: CodeStreamUnavailable}
	ErrInitialVolumeResolver = &Error{Code: CodeInitialVolumeResolver}
)

// Error is what play failures and error events carry.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}
