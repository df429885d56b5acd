package gatt

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a class of attribute operation failure. The values are
// the error names BlueZ expects on the bus.
type ErrorKind string

const (
	InvalidArguments   ErrorKind = "org.freedesktop.DBus.Error.InvalidArgs"
	NotSupported       ErrorKind = "org.bluez.Error.NotSupported"
	NotPermitted       ErrorKind = "org.bluez.Error.NotPermitted"
	InvalidValueLength ErrorKind = "org.bluez.Error.InvalidValueLength"
	Failed             ErrorKind = "org.bluez.Error.Failed"
)

// Error is an attribute operation failure of a given kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error // underlying cause, if any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to compare Error values by Kind
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// String returns a short human-readable name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case InvalidArguments:
		return "invalid arguments"
	case NotSupported:
		return "not supported"
	case NotPermitted:
		return "not permitted"
	case InvalidValueLength:
		return "invalid value length"
	case Failed:
		return "operation failed"
	default:
		return string(k)
	}
}

// Predefined sentinel errors, one per kind
var (
	ErrInvalidArguments   = &Error{Kind: InvalidArguments}
	ErrNotSupported       = &Error{Kind: NotSupported}
	ErrNotPermitted       = &Error{Kind: NotPermitted}
	ErrInvalidValueLength = &Error{Kind: InvalidValueLength}
	ErrFailed             = &Error{Kind: Failed}
)

// NewFailedError wraps cause as a Failed error, keeping the cause in the message.
func NewFailedError(msg string, cause error) *Error {
	return &Error{Kind: Failed, Msg: msg, Err: cause}
}

// KindOf returns the kind of err, or Failed when err carries no kind.
func KindOf(err error) ErrorKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return Failed
}
