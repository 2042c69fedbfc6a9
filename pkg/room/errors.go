package room

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure. The set is closed.
type Kind int

const (
	// KindNotFound indicates an unknown room, lane, artifact or participant id.
	KindNotFound Kind = iota + 1

	// KindValidation indicates a malformed request: a blank required field,
	// a missing or incompatible parent, a wrong role or a wrong artifact type.
	KindValidation

	// KindConflict indicates the request is well-formed but the current state
	// forbids it: the room is paused or the lane is not active.
	KindConflict
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// ParseKind converts the lower-case name back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "not_found":
		return KindNotFound, nil
	case "validation":
		return KindValidation, nil
	case "conflict":
		return KindConflict, nil
	default:
		return 0, fmt.Errorf("unknown error kind: %q (must be 'not_found', 'validation' or 'conflict')", s)
	}
}

// Error is a classified domain failure.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NotFoundf returns a KindNotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validationf returns a KindValidation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflictf returns a KindConflict error.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of the first *Error in err's chain.
// Returns 0 when err is nil or unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotFound returns true if err is classified as KindNotFound.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsValidation returns true if err is classified as KindValidation.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsConflict returns true if err is classified as KindConflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}
