package docstore

import (
	"errors"
	"fmt"
)

// Error codes reported by stores.
const (
	CodeNotFound        = "not-found"
	CodeInvalidArgument = "invalid-argument"
	CodeUnavailable     = "unavailable"
)

// Error is a store failure with a stable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("docstore %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("docstore %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// ErrNotFound matches any not-found error via errors.Is.
var ErrNotFound = &Error{Code: CodeNotFound, Message: "document not found"}

// CodeOf returns the docstore code of err, or "unknown".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "unknown"
}

func notFound(collection, id string) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s/%s not found", collection, id)}
}

func invalidArgument(msg string) error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

func unavailable(msg string, err error) error {
	return &Error{Code: CodeUnavailable, Message: msg, Err: err}
}
