package storage

import (
	"errors"
	"fmt"
)

// Event names the operation during which a storage error occurred.
type Event string

const (
	EventCreate Event = "create"
	EventRead   Event = "read"
	EventUpdate Event = "update"
	EventDelete Event = "delete"
	EventList   Event = "list"
)

var (
	// ErrNotFound is wrapped when nothing is stored at the path.
	ErrNotFound = errors.New("resource not found")

	// ErrIsDirectory is wrapped when a leaf operation targets a directory.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrEncoding is wrapped when content cannot be serialized or deserialized.
	ErrEncoding = errors.New("content encoding error")

	// ErrTransport is wrapped when the backend call itself failed.
	ErrTransport = errors.New("backend error")
)

// Error is the error type returned by Storage operations.
type Error struct {
	Event   Event
	Path    Path
	Message string
	Err     error
}

// NewError returns an *Error for event at path wrapping err.
func NewError(event Event, path Path, err error, format string, args ...any) *Error {
	return &Error{
		Event:   event,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %q", e.Event, e.Path.String())
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// EventOf returns the event recorded in err, or "" when err is not an *Error.
func EventOf(err error) Event {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Event
	}
	return ""
}
