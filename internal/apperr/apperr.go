// Package apperr defines the domain error kinds returned by the cash engine.
// Every failed operation returns exactly one kind with a descriptive message
// and leaves all state untouched — callers decide how to surface it.
package apperr

import "errors"

type Kind int

const (
	// KindConflict — open attempted while another session is already open.
	KindConflict Kind = iota + 1
	// KindNotFound — the referenced session does not exist.
	KindNotFound
	// KindInvalidState — append or close on a session that is not open.
	KindInvalidState
	// KindValidation — bad amount, unrecognized type/method, or an empty
	// closing declaration.
	KindValidation
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func InvalidState(msg string) *Error { return &Error{Kind: KindInvalidState, Message: msg} }
func Validation(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }

// KindOf extracts the kind from err, or 0 when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is allows errors.Is comparisons against a kind-only template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}
